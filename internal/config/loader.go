package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".protext.yaml"

// File is the YAML configuration file. Every field is optional; set fields
// override the defaults and are themselves overridden by CLI flags.
type File struct {
	Tor struct {
		Proxy           string `yaml:"proxy,omitempty"`
		Control         string `yaml:"control,omitempty"`
		ControlPassword string `yaml:"controlPassword,omitempty"`
		Disabled        bool   `yaml:"disabled,omitempty"`
		Embedded        bool   `yaml:"embedded,omitempty"`
	} `yaml:"tor,omitempty"`

	Scan struct {
		Preset      string  `yaml:"preset,omitempty"`
		Min         int     `yaml:"min,omitempty"`
		Max         int     `yaml:"max,omitempty"`
		Step        int     `yaml:"step,omitempty"`
		Direction   string  `yaml:"direction,omitempty"`
		BatchSize   int     `yaml:"batchSize,omitempty"`
		Workers     int     `yaml:"workers,omitempty"`
		SaveEvery   int     `yaml:"saveEvery,omitempty"`
		DelayMin    string  `yaml:"delayMin,omitempty"`
		DelayMax    string  `yaml:"delayMax,omitempty"`
		RotateEvery *int    `yaml:"rotateEvery,omitempty"`
		RPS         float64 `yaml:"rps,omitempty"`
	} `yaml:"scan,omitempty"`

	Fetch struct {
		MaxRetries  int    `yaml:"maxRetries,omitempty"`
		BaseDelay   string `yaml:"baseDelay,omitempty"`
		MaxBodySize int64  `yaml:"maxBodySize,omitempty"`
		ArticleURL  string `yaml:"articleURL,omitempty"`
		FeedURL     string `yaml:"feedURL,omitempty"`
		Readability bool   `yaml:"readability,omitempty"`
	} `yaml:"fetch,omitempty"`

	Output struct {
		Dir            string   `yaml:"dir,omitempty"`
		SkipExisting   bool     `yaml:"skipExisting,omitempty"`
		Categories     []string `yaml:"categories,omitempty"`
		Manifest       string   `yaml:"manifest,omitempty"`
		SQLiteDir      string   `yaml:"sqliteDir,omitempty"`
		PostgresDSN    string   `yaml:"postgresDSN,omitempty"`
		PostgresSchema string   `yaml:"postgresSchema,omitempty"`
	} `yaml:"output,omitempty"`

	MetricsAddr string `yaml:"metricsAddr,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cf, nil
}

// Apply copies every set field of the file onto c.
func (cf *File) Apply(c *Config) error {
	setString(&c.TorProxyAddress, cf.Tor.Proxy)
	setString(&c.ControlAddress, cf.Tor.Control)
	setString(&c.ControlPassword, cf.Tor.ControlPassword)
	c.NoTor = c.NoTor || cf.Tor.Disabled
	c.EmbeddedTor = c.EmbeddedTor || cf.Tor.Embedded

	setString(&c.Preset, cf.Scan.Preset)
	setInt(&c.MinID, cf.Scan.Min)
	setInt(&c.MaxID, cf.Scan.Max)
	setInt(&c.Step, cf.Scan.Step)
	setString(&c.Direction, cf.Scan.Direction)
	setInt(&c.BatchSize, cf.Scan.BatchSize)
	setInt(&c.Workers, cf.Scan.Workers)
	setInt(&c.SaveEvery, cf.Scan.SaveEvery)
	if err := setDuration(&c.DelayMin, cf.Scan.DelayMin); err != nil {
		return err
	}
	if err := setDuration(&c.DelayMax, cf.Scan.DelayMax); err != nil {
		return err
	}
	if cf.Scan.RotateEvery != nil {
		c.RotateEvery = *cf.Scan.RotateEvery
	}
	if cf.Scan.RPS != 0 {
		c.RequestsPerSecond = cf.Scan.RPS
	}

	setInt(&c.MaxRetries, cf.Fetch.MaxRetries)
	if err := setDuration(&c.BaseDelay, cf.Fetch.BaseDelay); err != nil {
		return err
	}
	if cf.Fetch.MaxBodySize != 0 {
		c.MaxBodySize = cf.Fetch.MaxBodySize
	}
	setString(&c.ArticleURLFormat, cf.Fetch.ArticleURL)
	setString(&c.FeedURL, cf.Fetch.FeedURL)
	c.UseReadability = c.UseReadability || cf.Fetch.Readability

	setString(&c.OutputDir, cf.Output.Dir)
	c.SkipExisting = c.SkipExisting || cf.Output.SkipExisting
	if len(cf.Output.Categories) > 0 {
		c.Categories = cf.Output.Categories
	}
	setString(&c.CategoryManifest, cf.Output.Manifest)
	setString(&c.SQLiteDir, cf.Output.SQLiteDir)
	setString(&c.PostgresDSN, cf.Output.PostgresDSN)
	setString(&c.PostgresSchema, cf.Output.PostgresSchema)
	setString(&c.MetricsAddr, cf.MetricsAddr)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimeout, v)
	}
	*dst = d
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .protext.yaml in the current directory
// 3. Look for .protext.yaml in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}

// LoadCategoryManifest reads a JSON array of category names. Blank names
// are dropped.
func LoadCategoryManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided manifest path is intentional
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidManifest, path, err)
	}
	out := names[:0]
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out, nil
}

// SaveCategoryManifest writes names as an indented JSON array.
func SaveCategoryManifest(path string, names []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
