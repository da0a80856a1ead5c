package utils

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the configuration of PEP compilation and solving
type Config struct {
	// Solver parameters
	MaxIterations int     `yaml:"max_iterations"` // Interior-point iteration cap
	Tolerance     float64 `yaml:"tolerance"`      // Relative gap and feasibility tolerance
	StepFraction  float64 `yaml:"step_fraction"`  // Fraction of the step to the cone boundary

	// Assembly parameters
	DedupDigits int `yaml:"dedup_digits"` // Significant digits compared when merging duplicate constraints

	// Certificate parameters
	ComputeCertificate   bool    `yaml:"compute_certificate"`
	CertificateTolerance float64 `yaml:"certificate_tolerance"`

	// Worst-case extraction
	RankTolerance float64 `yaml:"rank_tolerance"` // Eigenvalues below RankTolerance*max are dropped

	// Hash function for problem digests
	HashFunction string `yaml:"hash_function"` // "sha256" or "sha3"

	// Logging
	LogLevel  string `yaml:"log_level"`  // "debug", "info", "warn" or "error"
	LogFormat string `yaml:"log_format"` // "text" or "json"

	// Archive directory; empty disables the archive
	StorePath string `yaml:"store_path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		MaxIterations:        100,
		Tolerance:            1e-8,
		StepFraction:         0.95,
		DedupDigits:          10,
		ComputeCertificate:   true,
		CertificateTolerance: 1e-5,
		RankTolerance:        1e-5,
		HashFunction:         "sha3",
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive")
	}

	if c.Tolerance <= 0 || c.Tolerance >= 1 {
		return fmt.Errorf("tolerance must be in (0, 1), got %g", c.Tolerance)
	}

	if c.StepFraction <= 0 || c.StepFraction >= 1 {
		return fmt.Errorf("step fraction must be in (0, 1), got %g", c.StepFraction)
	}

	if c.DedupDigits < 3 || c.DedupDigits > 15 {
		return fmt.Errorf("dedup digits must be between 3 and 15, got %d", c.DedupDigits)
	}

	if c.CertificateTolerance <= 0 {
		return fmt.Errorf("certificate tolerance must be positive")
	}

	if c.RankTolerance <= 0 || c.RankTolerance >= 1 {
		return fmt.Errorf("rank tolerance must be in (0, 1), got %g", c.RankTolerance)
	}

	if !ValidHashFunction(c.HashFunction) {
		return fmt.Errorf("hash function must be 'sha256' or 'sha3', got '%s'", c.HashFunction)
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log format must be 'text' or 'json', got '%s'", c.LogFormat)
	}

	return nil
}

// WithMaxIterations sets the iteration cap
func (c *Config) WithMaxIterations(n int) *Config {
	c.MaxIterations = n
	return c
}

// WithTolerance sets the solver tolerance
func (c *Config) WithTolerance(tol float64) *Config {
	c.Tolerance = tol
	return c
}

// WithCertificate enables or disables certificate extraction
func (c *Config) WithCertificate(enabled bool) *Config {
	c.ComputeCertificate = enabled
	return c
}

// WithCertificateTolerance sets the verification tolerance
func (c *Config) WithCertificateTolerance(tol float64) *Config {
	c.CertificateTolerance = tol
	return c
}

// WithHashFunction sets the hash function
func (c *Config) WithHashFunction(hashFunc string) *Config {
	c.HashFunction = hashFunc
	return c
}

// WithLogLevel sets the log level
func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}

// WithStorePath sets the archive directory
func (c *Config) WithStorePath(path string) *Config {
	c.StorePath = path
	return c
}

// Clone creates a copy of the configuration
func (c *Config) Clone() *Config {
	out := *c
	return &out
}

// ParseConfig reads a YAML configuration; unset fields keep their defaults
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}
