// Package codec provides field.Codec implementations for object fields.
//
//	field.Object("Settings", func() any { return &Settings{} }).Codec(codec.Msgpack)
package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/syssam/strata/schema/field"
)

var (
	// Msgpack encodes object fields with MessagePack. It is compact and
	// keeps numeric types exact.
	Msgpack field.Codec = msgpackCodec{}

	// YAML encodes object fields as YAML text, readable in ad hoc queries.
	YAML field.Codec = yamlCodec{}
)

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: msgpack marshal %T: %w", v, err)
	}
	return b, nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: msgpack unmarshal %T: %w", v, err)
	}
	return nil
}

type yamlCodec struct{}

func (yamlCodec) Marshal(v any) ([]byte, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: yaml marshal %T: %w", v, err)
	}
	return b, nil
}

func (yamlCodec) Unmarshal(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: yaml unmarshal %T: %w", v, err)
	}
	return nil
}
