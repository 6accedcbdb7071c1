package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1h","b":1500000000}`), &v))
	assert.Equal(t, time.Hour, v.A.Duration)
	assert.Equal(t, 1500*time.Millisecond, v.B.Duration)
}

func TestDuration_UnmarshalJSON_Invalid(t *testing.T) {
	var d Duration
	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
	assert.Error(t, json.Unmarshal([]byte(`null`), &d))
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	var v struct {
		A Duration `yaml:"a"`
		B Duration `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 30m\nb: 2000\n"), &v))
	assert.Equal(t, 30*time.Minute, v.A.Duration)
	assert.Equal(t, 2000*time.Nanosecond, v.B.Duration)
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 90 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))
}

func TestDuration_UnmarshalTOML(t *testing.T) {
	var v struct {
		A Duration `toml:"a"`
		B Duration `toml:"b"`
	}
	_, err := toml.Decode("a = \"45s\"\nb = 1000\n", &v)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, v.A.Duration)
	assert.Equal(t, time.Microsecond, v.B.Duration)
}
