package releve

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level releve configuration.
type Config struct {
	// Roster is the path to the input CSV. Required.
	Roster string `yaml:"roster"`

	// Source selects the catalog adapter: gsmarena, amazon or flipkart.
	Source string `yaml:"source"`

	// Mode selects run preparation: fresh, resume or retry-errors.
	Mode string `yaml:"mode"`

	// ErrorList is the label list consumed by retry-errors mode.
	ErrorList string `yaml:"error_list"`

	// StateDB is the SQLite ledger path. Parent directories are created.
	StateDB string `yaml:"state_db"`

	// OutDir receives checkpoint output: the roster copy and the
	// per-source results CSV. Defaults to the roster's directory.
	OutDir string `yaml:"out_dir"`

	// CaptureDir receives diagnostic PNG captures.
	CaptureDir string `yaml:"capture_dir"`

	Browser BrowserSettings `yaml:"browser"`
	Run     RunSettings     `yaml:"run"`
	Control ControlSettings `yaml:"control"`
}

// BrowserSettings controls Chrome lifecycle and the fetch loop.
type BrowserSettings struct {
	// Remote is the WebSocket URL of an external Chrome.
	// Empty = launch a local one.
	Remote      string        `yaml:"remote"`
	Headless    bool          `yaml:"headless"`
	MaxRetries  int           `yaml:"max_retries"`
	NavTimeout  time.Duration `yaml:"nav_timeout"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	JitterMin   time.Duration `yaml:"jitter_min"`
	JitterMax   time.Duration `yaml:"jitter_max"`
	RateLimit   float64       `yaml:"rate_limit"`
}

// RunSettings tunes the run loop cadence.
type RunSettings struct {
	RefreshEvery  int `yaml:"refresh_every"`
	PersistEvery  int `yaml:"persist_every"`
	MaxCandidates int `yaml:"max_candidates"`
	MaxPages      int `yaml:"max_pages"`
}

// ControlSettings configures the operator HTTP surface. Empty Addr
// disables it.
type ControlSettings struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills service-level fields. Component knobs (browser
// retries, run cadence) stay zero here so each component applies its own
// defaults.
func (c *Config) applyDefaults() {
	if c.Source == "" {
		c.Source = "gsmarena"
	}
	if c.Mode == "" {
		c.Mode = "resume"
	}
	if c.StateDB == "" {
		c.StateDB = "releve.db"
	}
	if c.OutDir == "" && c.Roster != "" {
		c.OutDir = filepath.Dir(c.Roster)
	}
	if c.CaptureDir == "" {
		c.CaptureDir = "captures"
	}
}
