package client

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSettingsYAML(t *testing.T) {
	s := NewSettings()
	require.NoError(t, yaml.Unmarshal([]byte("host: http://localhost:8080\nclient_secret: ck_1\ntimeout: 5\n"), s))
	assert.Equal(t, "http://localhost:8080", s.Host)
	assert.Equal(t, "ck_1", s.ClientSecret)
	assert.Equal(t, 5*time.Second, s.Timeout)

	b, err := yaml.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), "timeout: 5")

	partial := NewSettings()
	require.NoError(t, yaml.Unmarshal([]byte("client_secret: ck_2\n"), partial))
	assert.Equal(t, DefaultHost, partial.Host)
	assert.Equal(t, DefaultTimeout, partial.Timeout)
}

func TestSettingsFromViper(t *testing.T) {
	v := viper.New()
	v.Set("client-secret", "ck_viper")
	v.Set("timeout", 12)

	s := SettingsFromViper(v)
	assert.Equal(t, DefaultHost, s.Host)
	assert.Equal(t, "ck_viper", s.ClientSecret)
	assert.Equal(t, 12*time.Second, s.Timeout)
	require.NoError(t, s.Validate())
}

func TestSettingsClone(t *testing.T) {
	s := NewSettings()
	s.ClientSecret = "ck_1"
	c := s.Clone()
	c.ClientSecret = "ck_2"
	assert.Equal(t, "ck_1", s.ClientSecret)
}
