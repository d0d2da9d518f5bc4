package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the proxy's YAML configuration file.
type Config struct {
	Listen    string       `yaml:"listen"`
	Prefix    string       `yaml:"prefix"`
	ChunkSize int64        `yaml:"chunkSize"`
	Upstream  string       `yaml:"upstream,omitempty"`
	Log       LogConfig    `yaml:"log"`
	Origin    OriginConfig `yaml:"origin"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// OriginConfig selects which origins the proxy can read ciphertext from.
// Plain HTTP(S) origins are always available.
type OriginConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	StorageURL   string        `yaml:"storageUrl,omitempty"`
	NamesURL     string        `yaml:"namesUrl,omitempty"`
	NameCacheTTL time.Duration `yaml:"nameCacheTtl"`
	S3           *S3Config     `yaml:"s3,omitempty"`
}

type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	UsePathStyle bool   `yaml:"usePathStyle,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:    ":8080",
		Prefix:    "/decrypt-video/",
		ChunkSize: 5 * 1024 * 1024,
		Log: LogConfig{
			Level: "info",
		},
		Origin: OriginConfig{
			Timeout:      60 * time.Second,
			NameCacheTTL: time.Minute,
		},
	}
}

// Load reads a YAML configuration file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to process config file '%s': %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for config file '%s': %w", path, err)
	}
	config.substitute(filepath.Dir(absPath))

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file '%s': %w", path, err)
	}
	return config, nil
}

func (c *Config) substitute(baseDir string) {
	fields := []*string{
		&c.Listen,
		&c.Prefix,
		&c.Upstream,
		&c.Log.Level,
		&c.Origin.StorageURL,
		&c.Origin.NamesURL,
	}
	if c.Origin.S3 != nil {
		fields = append(fields, &c.Origin.S3.Region, &c.Origin.S3.Endpoint)
	}
	for _, field := range fields {
		*field = SubstituteString(*field, baseDir)
	}
}

// Validate checks the values the proxy cannot run without.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if !strings.HasPrefix(c.Prefix, "/") {
		return fmt.Errorf("prefix %q must start with '/'", c.Prefix)
	}
	// Chunks start on cipher block boundaries only when the chunk size is a
	// whole number of blocks.
	if c.ChunkSize <= 0 || c.ChunkSize%16 != 0 {
		return fmt.Errorf("chunk size %d must be a positive multiple of 16", c.ChunkSize)
	}
	if c.Origin.NamesURL != "" && c.Origin.StorageURL == "" {
		return fmt.Errorf("namesUrl needs storageUrl to read the named blocks")
	}
	return nil
}

var substitutionRegex = regexp.MustCompile(`\\(?P<escaped>[~$*])|\\(?P<escaped_backslash>\\)|(?P<tilde>~)|(?P<star>\*)|(?P<varName>\$[a-zA-Z0-9_]+)`)

// SubstituteString replaces $NAME with the environment variable NAME, '~'
// with the user's home directory and '*' with baseDir. A backslash in front
// of '$', '~', '*' or '\' escapes it.
func SubstituteString(in string, baseDir string) string {
	homeDir, _ := os.UserHomeDir()

	return substitutionRegex.ReplaceAllStringFunc(in, func(match string) string {
		switch {
		case match == `\\`:
			return `\`
		case strings.HasPrefix(match, `\`):
			return match[1:]
		case match == "~":
			if homeDir != "" {
				return homeDir
			}
			return match
		case match == "*":
			return baseDir
		case strings.HasPrefix(match, "$"):
			return os.Getenv(match[1:])
		}
		return match
	})
}
