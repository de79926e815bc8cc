// Package config resolves cpsync settings from defaults, a YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment keys read by ApplyEnv.
const (
	EnvCodeforcesHandle   = "CPSYNC_CF_HANDLE"
	EnvCodeforcesPassword = "CPSYNC_CF_PASSWORD"
	EnvSPOJHandle         = "CPSYNC_SPOJ_HANDLE"
	EnvSPOJPassword       = "CPSYNC_SPOJ_PASSWORD"
)

// CodeforcesConfig holds the Codeforces phase settings.
type CodeforcesConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Handle     string        `yaml:"handle"`
	Password   string        `yaml:"password,omitempty"`
	Regular    bool          `yaml:"regular"`     // download regular contest submissions
	Gym        bool          `yaml:"gym"`         // download gym submissions (requires login)
	SplitGym   bool          `yaml:"split_gym"`   // keep gym and regular in separate folders
	PerContest bool          `yaml:"per_contest"` // one folder per contest
	BaseURL    string        `yaml:"base_url"`
	Pacing     time.Duration `yaml:"pacing"`
}

// SPOJConfig holds the SPOJ phase settings.
type SPOJConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Handle   string        `yaml:"handle"`
	Password string        `yaml:"password,omitempty"`
	BaseURL  string        `yaml:"base_url"`
	Pacing   time.Duration `yaml:"pacing"`
}

// Config is the fully resolved configuration of a sync run.
type Config struct {
	OutputDir  string           `yaml:"output_dir"`
	HistoryDB  string           `yaml:"history_db"` // empty disables history
	Timeout    time.Duration    `yaml:"timeout"`    // per request; 0 means the client default
	Verbose    bool             `yaml:"verbose"`
	LogLevel   string           `yaml:"log_level"` // overrides verbose when set
	LogFormat  string           `yaml:"log_format"`
	Codeforces CodeforcesConfig `yaml:"codeforces"`
	SPOJ       SPOJConfig       `yaml:"spoj"`
}

// Default returns the defaults. Both platforms are enabled, regular and gym
// submissions are included, and gym is kept separate from regular.
func Default() Config {
	return Config{
		OutputDir: ".",
		HistoryDB: defaultHistoryDB(),
		Verbose:   true,
		LogFormat: "text",
		Codeforces: CodeforcesConfig{
			Enabled:    true,
			Regular:    true,
			Gym:        true,
			SplitGym:   true,
			PerContest: true,
			BaseURL:    "https://codeforces.com",
			Pacing:     2 * time.Second,
		},
		SPOJ: SPOJConfig{
			Enabled: true,
			BaseURL: "https://www.spoj.com",
		},
	}
}

func defaultHistoryDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cpsync", "history.db")
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv loads envFile (if it exists) into the process environment and
// fills handles and passwords that are still empty from it. Values
// already set in cfg win.
func ApplyEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	fill := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	fill(&cfg.Codeforces.Handle, EnvCodeforcesHandle)
	fill(&cfg.Codeforces.Password, EnvCodeforcesPassword)
	fill(&cfg.SPOJ.Handle, EnvSPOJHandle)
	fill(&cfg.SPOJ.Password, EnvSPOJPassword)
	return nil
}

// Normalize canonicalizes cfg in place. Handles are trimmed and
// lowercased. SplitGym is left as given: it defaults on, so with gym
// excluded regular submissions land under "normal" unless the operator
// turned splitting off.
func (c *Config) Normalize() {
	c.Codeforces.Handle = strings.ToLower(strings.TrimSpace(c.Codeforces.Handle))
	c.SPOJ.Handle = strings.ToLower(strings.TrimSpace(c.SPOJ.Handle))
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
}

// NeedsCodeforcesPassword reports whether the Codeforces phase has to log in.
func (c *Config) NeedsCodeforcesPassword() bool {
	return c.Codeforces.Enabled && c.Codeforces.Gym
}

// Validate checks that every enabled phase has what it needs to run.
func (c *Config) Validate() error {
	var errs []error
	if !c.Codeforces.Enabled && !c.SPOJ.Enabled {
		errs = append(errs, errors.New("no platform enabled"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout must not be negative"))
	}
	if c.Codeforces.Enabled {
		if c.Codeforces.Handle == "" {
			errs = append(errs, errors.New("codeforces: handle is required"))
		}
		if c.Codeforces.Gym && c.Codeforces.Password == "" {
			errs = append(errs, errors.New("codeforces: password is required to download gym submissions"))
		}
		if !c.Codeforces.Regular && !c.Codeforces.Gym {
			errs = append(errs, errors.New("codeforces: at least one of regular or gym must be included"))
		}
		if c.Codeforces.Pacing < 0 {
			errs = append(errs, errors.New("codeforces: pacing must not be negative"))
		}
	}
	if c.SPOJ.Enabled {
		if c.SPOJ.Handle == "" {
			errs = append(errs, errors.New("spoj: handle is required"))
		}
		if c.SPOJ.Password == "" {
			errs = append(errs, errors.New("spoj: password is required"))
		}
		if c.SPOJ.Pacing < 0 {
			errs = append(errs, errors.New("spoj: pacing must not be negative"))
		}
	}
	return errors.Join(errs...)
}
