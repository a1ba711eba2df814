package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is ACE's complete process configuration, parsed once at
// startup from a YAML file and never mutated afterward.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	TLS TLSConfig `yaml:"tls"`

	StatementTimeout   time.Duration `yaml:"statement_timeout"`
	DefaultBlockRows   int           `yaml:"default_block_rows"`
	DefaultMaxCPURatio float64       `yaml:"default_max_cpu_ratio"`
	DefaultBatchSize   int           `yaml:"default_batch_size"`
	DiffOutputDir      string        `yaml:"diff_output_dir"`

	WorkerPoolSize int `yaml:"worker_pool_size"`

	ControlPlaneDSN string `yaml:"control_plane_dsn"`

	DescriptorCachePath      string `yaml:"descriptor_cache_path"`
	DescriptorEncryptionKey  string `yaml:"descriptor_encryption_key"`

	AutoRepair AutoRepairConfig `yaml:"auto_repair"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Raft       RaftConfig       `yaml:"raft"`
}

// TLSConfig is the mTLS material the API Gateway loads at startup.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// AutoRepairConfig drives the Auto-Repair Loop (spec.md §4.10).
type AutoRepairConfig struct {
	Enabled              bool          `yaml:"enabled"`
	ClusterName          string        `yaml:"cluster_name"`
	DBName               string        `yaml:"dbname"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	StatusUpdateInterval time.Duration `yaml:"status_update_interval"`
}

// ScheduleConfig lists recurring jobs and their trigger schedules
// (spec.md §6, §4.9).
type ScheduleConfig struct {
	Jobs    []JobDefinition     `yaml:"jobs"`
	Entries []ScheduleEntry     `yaml:"entries"`
}

// JobDefinition names a recurring diff/repair job and the parameters
// it runs with.
type JobDefinition struct {
	Name        string         `yaml:"name"`
	ClusterName string         `yaml:"cluster"`
	TableName   string         `yaml:"table"`
	Args        map[string]any `yaml:"args"`
}

// ScheduleEntry binds a JobDefinition (by name) to a trigger: either a
// standard 5-field crontab expression or a run_frequency interval
// string in the "Nw Nd Nh Nm Ns" grammar (pkg/scheduler/interval.go).
type ScheduleEntry struct {
	JobName         string `yaml:"job_name"`
	Enabled         bool   `yaml:"enabled"`
	CrontabSchedule string `yaml:"crontab_schedule,omitempty"`
	RunFrequency    string `yaml:"run_frequency,omitempty"`
}

// RaftConfig configures the control-plane leadership group
// (SPEC_FULL.md §4.12). A single-process deployment sets Bootstrap
// true and leaves Peers empty.
type RaftConfig struct {
	NodeID    string   `yaml:"node_id"`
	DataDir   string   `yaml:"data_dir"`
	BindAddr  string   `yaml:"bind_addr"`
	Peers     []string `yaml:"peers"`
	Bootstrap bool     `yaml:"bootstrap"`
}

// Load reads and parses the YAML file at path, applies defaults, and
// validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":5000"
	}
	if c.StatementTimeout == 0 {
		c.StatementTimeout = 30 * time.Second
	}
	if c.DefaultBlockRows == 0 {
		c.DefaultBlockRows = 10000
	}
	if c.DefaultMaxCPURatio == 0 {
		c.DefaultMaxCPURatio = 0.5
	}
	if c.DefaultBatchSize == 0 {
		c.DefaultBatchSize = 10000
	}
	if c.WorkerPoolSize == 0 {
		c.WorkerPoolSize = 32
	}
	if c.AutoRepair.PollInterval == 0 {
		c.AutoRepair.PollInterval = 10 * time.Second
	}
	if c.AutoRepair.StatusUpdateInterval == 0 {
		c.AutoRepair.StatusUpdateInterval = 30 * time.Second
	}
	if c.DescriptorCachePath == "" {
		c.DescriptorCachePath = "/var/lib/ace/descriptors.db"
	}
	if c.DiffOutputDir == "" {
		c.DiffOutputDir = "/var/lib/ace/diffs"
	}
}

func (c *Config) validate() error {
	if c.TLS.CertFile == "" || c.TLS.KeyFile == "" || c.TLS.CAFile == "" {
		return fmt.Errorf("tls.cert_file, tls.key_file and tls.ca_file are required")
	}
	if c.ControlPlaneDSN == "" {
		return fmt.Errorf("control_plane_dsn is required")
	}
	if c.DescriptorEncryptionKey == "" {
		return fmt.Errorf("descriptor_encryption_key is required")
	}
	if len(c.DescriptorEncryptionKey) != 32 {
		return fmt.Errorf("descriptor_encryption_key must be exactly 32 bytes, got %d", len(c.DescriptorEncryptionKey))
	}
	return nil
}
