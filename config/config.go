// Package config provides loading and parsing of enumid.yaml configuration
// files. The configuration selects the durable enum store backend and its
// connection settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents an enumid.yaml configuration file.
type Config struct {
	// Backend selects the durable store: "file", "redis", or "etcd".
	// Default: "file"
	Backend string `yaml:"backend,omitempty"`

	// Capacity caps the number of distinct names the registry will assign.
	// 0 means the registry default (the full id space).
	Capacity int `yaml:"capacity,omitempty"`

	// File configures the file backend.
	File *FileConfig `yaml:"file,omitempty"`

	// Redis configures the Redis backend. Required if Backend="redis".
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// Etcd configures the etcd backend. Required if Backend="etcd".
	Etcd *EtcdConfig `yaml:"etcd,omitempty"`
}

// FileConfig configures the flat-file enum store.
type FileConfig struct {
	// Path is the location of the enum file.
	// Default: <user cache dir>/gibson/indices.enum
	Path string `yaml:"path,omitempty"`
}

// RedisConfig configures the Redis enum store.
type RedisConfig struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string `yaml:"url"`

	// Key is the Redis list key holding the ordered name list.
	// Default: "gibson:enum:names"
	Key string `yaml:"key,omitempty"`

	// ConnectTimeout is the connection timeout.
	// Format: Go duration string (e.g., "5s")
	// Default: 5s
	ConnectTimeout string `yaml:"connect_timeout,omitempty"`

	// ReadTimeout is the read timeout.
	// Default: 30s
	ReadTimeout string `yaml:"read_timeout,omitempty"`

	// WriteTimeout is the write timeout.
	// Default: 5s
	WriteTimeout string `yaml:"write_timeout,omitempty"`

	// TLS holds TLS configuration for secure Redis communication.
	TLS *TLSConfig `yaml:"tls,omitempty"`
}

// GetConnectTimeout parses the connect timeout and returns a duration.
// Returns the default value if not set or invalid.
func (r *RedisConfig) GetConnectTimeout() time.Duration {
	return parseDuration(r.ConnectTimeout, 5*time.Second)
}

// GetReadTimeout parses the read timeout and returns a duration.
// Returns the default value if not set or invalid.
func (r *RedisConfig) GetReadTimeout() time.Duration {
	return parseDuration(r.ReadTimeout, 30*time.Second)
}

// GetWriteTimeout parses the write timeout and returns a duration.
// Returns the default value if not set or invalid.
func (r *RedisConfig) GetWriteTimeout() time.Duration {
	return parseDuration(r.WriteTimeout, 5*time.Second)
}

// EtcdConfig configures the etcd enum store.
type EtcdConfig struct {
	// Endpoints is the list of etcd endpoints
	// Format: ["host1:2379", "host2:2379"]
	Endpoints []string `yaml:"endpoints"`

	// Namespace is the etcd key prefix for the enum key.
	// Default: "gibson"
	Namespace string `yaml:"namespace,omitempty"`

	// DialTimeout is the connection timeout.
	// Default: 5s
	DialTimeout string `yaml:"dial_timeout,omitempty"`

	// TLS holds TLS configuration for secure etcd communication.
	TLS *TLSConfig `yaml:"tls,omitempty"`
}

// GetDialTimeout parses the dial timeout and returns a duration.
// Returns the default value if not set or invalid.
func (e *EtcdConfig) GetDialTimeout() time.Duration {
	return parseDuration(e.DialTimeout, 5*time.Second)
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	// Enabled determines whether TLS is active
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the client certificate file (PEM format)
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the client private key file (PEM format)
	KeyFile string `yaml:"key_file"`

	// CAFile is the path to the certificate authority file (PEM format)
	CAFile string `yaml:"ca_file"`
}

// GetBackend returns the configured backend or the default value.
func (c *Config) GetBackend() string {
	if c == nil || c.Backend == "" {
		return "file"
	}
	return c.Backend
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Load reads and parses an enumid.yaml file from the given path.
// If the path is a directory, it looks for enumid.yaml or enumid.yml in
// that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	var configPath string
	if info.IsDir() {
		// Try enumid.yaml first, then enumid.yml
		yamlPath := filepath.Join(path, "enumid.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "enumid.yml")
			if _, err := os.Stat(ymlPath); err == nil {
				configPath = ymlPath
			} else {
				return nil, fmt.Errorf("no enumid.yaml or enumid.yml found in %s", path)
			}
		}
	} else {
		configPath = path
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadFromDir searches for enumid.yaml starting from the given directory
// and walking up to parent directories until found or root is reached.
func LoadFromDir(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	for {
		config, err := Load(absDir)
		if err == nil {
			return config, nil
		}

		parent := filepath.Dir(absDir)
		if parent == absDir {
			// Reached root
			return nil, fmt.Errorf("no enumid.yaml found in %s or parent directories", dir)
		}
		absDir = parent
	}
}
