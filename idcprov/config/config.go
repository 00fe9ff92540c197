package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLogDir        = "./logs"
	DefaultQEndpoint     = "https://codewhisperer.us-east-1.amazonaws.com/"
	DefaultQRegion       = "us-east-1"
	DefaultQSigningName  = "q"
	DefaultQTarget       = "AmazonQDeveloperService.CreateAssignment"
	DefaultQUserAgent    = "idcprov/1.0"
	DefaultPrincipalType = "USER"
	DefaultReportRegion  = "us-east-1"
)

type Config struct {
	// Region for the identity store client. Empty defers to the AWS
	// shared config / AWS_REGION.
	Region          string        `yaml:"region" env:"IDCPROV_REGION"`
	Subscribe       bool          `yaml:"subscribe" env:"IDCPROV_SUBSCRIBE"`
	StrictUsernames bool          `yaml:"strict_usernames" env:"IDCPROV_STRICT_USERNAMES"`
	CallTimeout     time.Duration `yaml:"call_timeout" env:"IDCPROV_CALL_TIMEOUT"`
	LogDir          string        `yaml:"log_dir" env:"IDCPROV_LOG_DIR"`
	NoColor         bool          `yaml:"no_color" env:"IDCPROV_NO_COLOR"`

	Q      QConfig      `yaml:"q"`
	Report ReportConfig `yaml:"report"`
}

// QConfig describes the Amazon Q Developer CreateAssignment call.
type QConfig struct {
	Endpoint      string `yaml:"endpoint" env:"IDCPROV_Q_ENDPOINT"`
	Region        string `yaml:"region" env:"IDCPROV_Q_REGION"`
	SigningName   string `yaml:"signing_name" env:"IDCPROV_Q_SIGNING_NAME"`
	Target        string `yaml:"target" env:"IDCPROV_Q_TARGET"`
	UserAgent     string `yaml:"user_agent" env:"IDCPROV_Q_USER_AGENT"`
	PrincipalType string `yaml:"principal_type" env:"IDCPROV_Q_PRINCIPAL_TYPE"`
}

// ReportConfig controls the run report artifact. Both sinks are optional.
type ReportConfig struct {
	File      string `yaml:"file" env:"IDCPROV_REPORT_FILE"`
	Bucket    string `yaml:"bucket" env:"IDCPROV_REPORT_BUCKET"`
	Prefix    string `yaml:"prefix" env:"IDCPROV_REPORT_PREFIX"`
	Endpoint  string `yaml:"endpoint" env:"IDCPROV_REPORT_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"IDCPROV_REPORT_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"IDCPROV_REPORT_SECRET_KEY"`
	Region    string `yaml:"region" env:"IDCPROV_REPORT_REGION"`
	Secure    bool   `yaml:"secure" env:"IDCPROV_REPORT_SECURE"`
}

// LoadConfig builds the configuration from, in increasing precedence: the
// YAML file named by IDCPROV_CONFIG, a .env file in the working directory,
// and the process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("IDCPROV_CONFIG"); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFile reads a YAML configuration file without applying defaults.
func LoadFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	if c.Report.Region == "" {
		c.Report.Region = DefaultReportRegion
	}
	if c.Q.Endpoint == "" {
		c.Q.Endpoint = DefaultQEndpoint
	}
	if c.Q.Region == "" {
		c.Q.Region = DefaultQRegion
	}
	if c.Q.SigningName == "" {
		c.Q.SigningName = DefaultQSigningName
	}
	if c.Q.Target == "" {
		c.Q.Target = DefaultQTarget
	}
	if c.Q.UserAgent == "" {
		c.Q.UserAgent = DefaultQUserAgent
	}
	if c.Q.PrincipalType == "" {
		c.Q.PrincipalType = DefaultPrincipalType
	}
}

// ReportUploadEnabled reports whether the object storage sink is configured.
func (c Config) ReportUploadEnabled() bool {
	return c.Report.Bucket != "" && c.Report.Endpoint != ""
}
