package client

import (
	"net/http"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost    = "https://api.openai.com"
	DefaultTimeout = 60 * time.Second
)

var ErrMissingClientSecret = errors.New("missing client secret")

// Settings configures a Client. Timeout is read from yaml and viper as a
// number of seconds.
type Settings struct {
	Host         string        `yaml:"host,omitempty"`
	ClientSecret string        `yaml:"client_secret,omitempty"`
	Timeout      time.Duration `yaml:"-"`
	HTTPClient   *http.Client  `yaml:"-" json:"-"`
}

func NewSettings() *Settings {
	return &Settings{
		Host:    DefaultHost,
		Timeout: DefaultTimeout,
	}
}

// UnmarshalYAML overrides YAML parsing to convert the timeout from seconds.
// Keys missing from the document keep their current value.
func (s *Settings) UnmarshalYAML(value *yaml.Node) error {
	var aux struct {
		Host         *string `yaml:"host"`
		ClientSecret *string `yaml:"client_secret"`
		Timeout      *int    `yaml:"timeout"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}
	if aux.Host != nil {
		s.Host = *aux.Host
	}
	if aux.ClientSecret != nil {
		s.ClientSecret = *aux.ClientSecret
	}
	if aux.Timeout != nil {
		s.Timeout = time.Duration(*aux.Timeout) * time.Second
	}
	return nil
}

// MarshalYAML writes the timeout as seconds.
func (s Settings) MarshalYAML() (interface{}, error) {
	return struct {
		Host         string `yaml:"host,omitempty"`
		ClientSecret string `yaml:"client_secret,omitempty"`
		Timeout      int    `yaml:"timeout,omitempty"`
	}{
		Host:         s.Host,
		ClientSecret: s.ClientSecret,
		Timeout:      int(s.Timeout / time.Second),
	}, nil
}

// SettingsFromViper reads the "host", "client-secret" and "timeout" keys,
// keeping the defaults for unset keys.
func SettingsFromViper(v *viper.Viper) *Settings {
	ret := NewSettings()
	if h := v.GetString("host"); h != "" {
		ret.Host = h
	}
	ret.ClientSecret = v.GetString("client-secret")
	if t := v.GetInt("timeout"); t > 0 {
		ret.Timeout = time.Duration(t) * time.Second
	}
	return ret
}

// Clone returns a deep copy. The HTTP client is shared.
func (s *Settings) Clone() *Settings {
	c := *s
	c.HTTPClient = nil
	ret := clone.Clone(&c).(*Settings)
	ret.HTTPClient = s.HTTPClient
	return ret
}

func (s *Settings) Validate() error {
	if s.ClientSecret == "" {
		return ErrMissingClientSecret
	}
	if s.Host == "" {
		return errors.New("missing host")
	}
	return nil
}
