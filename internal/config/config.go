package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`
	Server        struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	OpenMRS struct {
		URL      string        `mapstructure:"url"`
		Username string        `mapstructure:"username"`
		Password string        `mapstructure:"password"`
		Timeout  time.Duration `mapstructure:"timeout"`
		OAuth    struct {
			TokenURL     string   `mapstructure:"token_url"`
			ClientID     string   `mapstructure:"client_id"`
			ClientSecret string   `mapstructure:"client_secret"`
			Scopes       []string `mapstructure:"scopes"`
		} `mapstructure:"oauth"`
	} `mapstructure:"openmrs"`
	Endpoints struct {
		Program                  string `mapstructure:"program"`
		Enrollment               string `mapstructure:"enrollment"`
		AttributeTypes           string `mapstructure:"attribute_types"`
		EnrollmentRepresentation string `mapstructure:"enrollment_representation"`
	} `mapstructure:"endpoints"`
	Auth struct {
		OktaDomain   string `mapstructure:"okta_domain"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURL  string `mapstructure:"redirect_url"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Log struct {
		Level  string `mapstructure:"level"`
		Pretty bool   `mapstructure:"pretty"`
	} `mapstructure:"log"`

	v *viper.Viper
}

// LoadConfig loads the configuration from a file and the environment. An
// empty path searches for config.yaml in . and ./config; a missing file
// there is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("environment", "PROD")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("openmrs.url", "http://localhost:8050")
	v.SetDefault("openmrs.timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("app.mandatoryProgramAttributes", []string{})

	// AutomaticEnv only affects Get; Unmarshal needs every key known.
	for _, key := range []string{
		"dev_mode_bypass",
		"openmrs.username", "openmrs.password",
		"openmrs.oauth.token_url", "openmrs.oauth.client_id", "openmrs.oauth.client_secret", "openmrs.oauth.scopes",
		"endpoints.program", "endpoints.enrollment", "endpoints.attribute_types", "endpoints.enrollment_representation",
		"auth.okta_domain", "auth.client_id", "auth.client_secret", "auth.redirect_url",
		"tls.enable", "tls.cert_file", "tls.key_file", "tls.hostnames",
		"log.pretty",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.v = v

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)
	config.OpenMRS.URL = strings.TrimRight(strings.TrimSpace(config.OpenMRS.URL), "/")

	return &config, nil
}

// IsDev reports whether the application runs in the DEV environment.
func (c *Config) IsDev() bool {
	return strings.ToUpper(c.Environment) == "DEV"
}

// AppDescriptor returns the application configuration values read by the
// program service.
func (c *Config) AppDescriptor() *AppDescriptor {
	v := c.v
	if v == nil {
		v = viper.New()
	}
	return &AppDescriptor{v: v}
}

// AppDescriptor exposes named values from the "app" configuration section.
type AppDescriptor struct {
	v *viper.Viper
}

// GetStringSlice returns the named app configuration value as a list.
func (a *AppDescriptor) GetStringSlice(name string) []string {
	return a.v.GetStringSlice("app." + name)
}

// normalizeOktaIssuer ensures the provided Okta issuer string is in a
// predictable form. It removes any trailing slash and leaves the scheme and
// path intact.
func normalizeOktaIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
