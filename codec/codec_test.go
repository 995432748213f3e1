package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/strata/codec"
	"github.com/syssam/strata/schema/field"
)

type settings struct {
	Theme  string   `msgpack:"theme" yaml:"theme"`
	Limits []int    `msgpack:"limits" yaml:"limits"`
	Tags   []string `msgpack:"tags,omitempty" yaml:"tags,omitempty"`
}

func TestCodecs(t *testing.T) {
	t.Parallel()

	for name, c := range map[string]field.Codec{"msgpack": codec.Msgpack, "yaml": codec.YAML} {
		t.Run(name, func(t *testing.T) {
			in := settings{Theme: "dark", Limits: []int{1, 2, 3}}
			data, err := c.Marshal(in)
			require.NoError(t, err)

			out := &settings{}
			require.NoError(t, c.Unmarshal(data, out))
			assert.Equal(t, in, *out)
		})
	}
}

func TestYAMLText(t *testing.T) {
	t.Parallel()

	data, err := codec.YAML.Marshal(settings{Theme: "light"})
	require.NoError(t, err)
	assert.Contains(t, string(data), "theme: light")
}

func TestUnmarshalError(t *testing.T) {
	t.Parallel()

	var out settings
	assert.ErrorContains(t, codec.Msgpack.Unmarshal([]byte{0xc1}, &out), "codec: msgpack unmarshal")
	assert.ErrorContains(t, codec.YAML.Unmarshal([]byte("theme: [unclosed"), &out), "codec: yaml unmarshal")
}
