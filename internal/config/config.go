package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "DEVEXPORT"

	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

type Config struct {
	GitHub GitHubConfig `mapstructure:"github" yaml:"github" validate:"-"`
	Google GoogleConfig `mapstructure:"google" yaml:"google"`
	HTTP   HTTPConfig   `mapstructure:"http" yaml:"http"`
	Drive  DriveConfig  `mapstructure:"drive" yaml:"drive"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type GitHubConfig struct {
	Token  string `mapstructure:"token" yaml:"token" validate:"required"`
	User   string `mapstructure:"user" yaml:"user" validate:"required"`
	APIURL string `mapstructure:"api_url" yaml:"api_url,omitempty" validate:"omitempty,url"`
}

type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file" validate:"required"`
	TokenFile       string `mapstructure:"token_file" yaml:"token_file" validate:"required_if=TokenStore file"`
	TokenStore      string `mapstructure:"token_store" yaml:"token_store" validate:"oneof=file keyring"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
}

type DriveConfig struct {
	PageInterval time.Duration `mapstructure:"page_interval" yaml:"page_interval" validate:"gte=0"`
	PageSize     int           `mapstructure:"page_size" yaml:"page_size" validate:"min=1,max=1000"`
}

type LogConfig struct {
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

func Default() *Config {
	return &Config{
		Google: GoogleConfig{
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
			TokenStore:      TokenStoreFile,
		},
		HTTP:  HTTPConfig{Timeout: 30 * time.Second},
		Drive: DriveConfig{PageInterval: 200 * time.Millisecond, PageSize: 100},
		Log:   LogConfig{Format: "text"},
	}
}

// Load reads .env files, then the optional YAML file, then DEVEXPORT_*
// variables (DEVEXPORT_GITHUB_TOKEN, DEVEXPORT_HTTP_TIMEOUT, ...). An empty
// path searches ./devexport.yaml and ~/.config/devexport/devexport.yaml.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	def := Default()
	v.SetDefault("github.token", "")
	v.SetDefault("github.user", "")
	v.SetDefault("github.api_url", "")
	v.SetDefault("google.credentials_file", def.Google.CredentialsFile)
	v.SetDefault("google.token_file", def.Google.TokenFile)
	v.SetDefault("google.token_store", def.Google.TokenStore)
	v.SetDefault("http.timeout", def.HTTP.Timeout)
	v.SetDefault("drive.page_interval", def.Drive.PageInterval)
	v.SetDefault("drive.page_size", def.Drive.PageSize)
	v.SetDefault("log.format", def.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("devexport")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "devexport"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}

	return cfg, nil
}

func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the settings every exporter needs.
func (c *Config) Validate() error {
	return validationError(validate.Struct(c))
}

// ValidateGitHub additionally requires a token and a user.
func (c *Config) ValidateGitHub() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return validationError(validate.Struct(c.GitHub))
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Masked returns a copy safe to print.
func (c *Config) Masked() Config {
	out := *c
	out.GitHub.Token = mask(c.GitHub.Token)
	return out
}

func mask(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return "****" + secret[len(secret)-4:]
	}
}
