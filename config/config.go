package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/marcelsud/webhook-receiver/record"
	"github.com/spf13/viper"
)

/* Config holds the listener settings
 * Positional startup arguments override port, status and output flags,
 * RECEIVER_* environment variables override the optional .env file
 */

const envPrefix = "RECEIVER"

type Config struct {
	Port             int    `mapstructure:"PORT"`
	StatusCode       int    `mapstructure:"STATUS_CODE"`
	ConsoleOutput    bool   `mapstructure:"CONSOLE_OUTPUT"`
	FileOutput       bool   `mapstructure:"FILE_OUTPUT"`
	Path             string `mapstructure:"PATH"`
	CertFile         string `mapstructure:"CERT_FILE"`
	KeyFile          string `mapstructure:"KEY_FILE"`
	SharedSecretFile string `mapstructure:"SHARED_SECRET_FILE"`
	RecordFile       string `mapstructure:"RECORD_FILE"`
	RecordFormat     string `mapstructure:"RECORD_FORMAT"`
	MetricsPort      int    `mapstructure:"METRICS_PORT"`
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int    `mapstructure:"REDIS_DB"`
	Session          string `mapstructure:"SESSION"`
}

var defaults = map[string]interface{}{
	"PORT":               3000,
	"STATUS_CODE":        200,
	"CONSOLE_OUTPUT":     false,
	"FILE_OUTPUT":        false,
	"PATH":               "/",
	"CERT_FILE":          "cert.pem",
	"KEY_FILE":           "key.pem",
	"SHARED_SECRET_FILE": "sharedSecretKey.txt",
	"RECORD_FILE":        record.DefaultFile,
	"RECORD_FORMAT":      "json",
	"METRICS_PORT":       0,
	"REDIS_ADDR":         "",
	"REDIS_PASSWORD":     "",
	"REDIS_DB":           0,
	"SESSION":            "",
}

// Default returns the configuration with every default applied
func Default() Config {
	return Config{
		Port:             3000,
		StatusCode:       200,
		Path:             "/",
		CertFile:         "cert.pem",
		KeyFile:          "key.pem",
		SharedSecretFile: "sharedSecretKey.txt",
		RecordFile:       record.DefaultFile,
		RecordFormat:     "json",
	}
}

// GetConfig loads the configuration from ./.env (optional) and the environment
func GetConfig() (*Config, error) {
	return Load(".")
}

// Load reads the optional .env TOML file from the given directories, then the environment
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

/* ApplyArgs applies the positional arguments: port, status code, console output, file output
 * Missing arguments keep the current value; the flags are true only for the literal "true"
 */
func (c *Config) ApplyArgs(args []string) error {
	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("parsing port %q: %w", args[0], err)
		}
		c.Port = port
	}
	if len(args) > 1 {
		status, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("parsing status code %q: %w", args[1], err)
		}
		c.StatusCode = status
	}
	if len(args) > 2 {
		c.ConsoleOutput = args[2] == "true"
	}
	if len(args) > 3 {
		c.FileOutput = args[3] == "true"
	}
	return c.Validate()
}

// Args returns the positional arguments that reproduce this configuration
func (c *Config) Args() []string {
	return []string{
		strconv.Itoa(c.Port),
		strconv.Itoa(c.StatusCode),
		strconv.FormatBool(c.ConsoleOutput),
		strconv.FormatBool(c.FileOutput),
	}
}

// Environ returns the RECEIVER_* variables for the settings not carried by Args
func (c *Config) Environ() []string {
	vars := map[string]string{
		"PATH":               c.Path,
		"CERT_FILE":          c.CertFile,
		"KEY_FILE":           c.KeyFile,
		"SHARED_SECRET_FILE": c.SharedSecretFile,
		"RECORD_FILE":        c.RecordFile,
		"RECORD_FORMAT":      c.RecordFormat,
		"METRICS_PORT":       strconv.Itoa(c.MetricsPort),
		"REDIS_ADDR":         c.RedisAddr,
		"REDIS_PASSWORD":     c.RedisPassword,
		"REDIS_DB":           strconv.Itoa(c.RedisDB),
		"SESSION":            c.Session,
	}

	env := make([]string, 0, len(vars))
	for _, key := range sortedKeys(vars) {
		env = append(env, fmt.Sprintf("%s_%s=%s", envPrefix, key, vars[key]))
	}
	return env
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535 (got %d)", c.Port)
	}
	if c.StatusCode < 100 || c.StatusCode > 999 {
		return fmt.Errorf("status code must be between 100 and 999 (got %d)", c.StatusCode)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path must start with / (got %q)", c.Path)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 0 and 65535 (got %d)", c.MetricsPort)
	}
	return nil
}

// UsesRedis reports whether the supervisor link runs over Redis
func (c *Config) UsesRedis() bool {
	return c.RedisAddr != ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
