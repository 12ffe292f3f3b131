package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/koprjaa/protext-scraper/internal/crawler"
	"github.com/koprjaa/protext-scraper/internal/model"
	"github.com/koprjaa/protext-scraper/internal/tor"
)

// Default configuration values.
const (
	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// 127.0.0.1 avoids resolving localhost to ::1 on some systems.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultControlAddress is the standard Tor control port address.
	DefaultControlAddress = "127.0.0.1:9051"

	// DefaultTorStartupTimeout bounds embedded Tor bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultBatchSize is the number of IDs probed per batch.
	DefaultBatchSize = 50

	// DefaultWorkers is the number of concurrent probes inside a batch.
	DefaultWorkers = 10

	// DefaultSaveEvery is the number of new records that triggers a flush.
	DefaultSaveEvery = 100

	// DefaultStep is the distance between consecutive probed IDs.
	DefaultStep = 1

	// DefaultDelayMin and DefaultDelayMax bound the pause between batches.
	DefaultDelayMin = 2 * time.Second
	DefaultDelayMax = 5 * time.Second

	// DefaultRotateEvery is the number of batches between proactive
	// identity rotations.
	DefaultRotateEvery = 15

	// DefaultMaxRetries is the number of attempts per article URL.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the base of the exponential backoff.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultSampleSize is the number of newest IDs scraped by
	// --sample-categories when no size is given.
	DefaultSampleSize = 200

	// DefaultPostgresSchema is the schema of the Postgres mirror table.
	DefaultPostgresSchema = "public"

	// OutputPrefix names timestamped scan output files.
	OutputPrefix = "content"

	// AppName is the application name used for XDG directory paths.
	AppName = "protext"
)

// Config holds every option of a scan. It is populated from CLI flags over
// an optional YAML file and validated once before any network activity.
type Config struct {
	// TorProxyAddress is the SOCKS5 proxy in "host:port" form.
	TorProxyAddress string

	// ControlAddress is the Tor control port in "host:port" form.
	ControlAddress string

	// ControlPassword authenticates to the control port. Empty means no
	// password, or cookie authentication when Tor offers it.
	ControlPassword string

	// NoTor disables proxying and egress rotation entirely.
	NoTor bool

	// EmbeddedTor starts a private Tor daemon instead of using the
	// proxy at TorProxyAddress.
	EmbeddedTor bool

	// TorStartupTimeout bounds embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// MinID and MaxID bound the scanned range. Zero means "take it from
	// the preset or from feed discovery".
	MinID int
	MaxID int

	// Step is the distance between consecutive probed IDs.
	Step int

	// Direction is "newest-first" or "oldest-first".
	Direction string

	// Preset names a range preset relative to the latest article.
	Preset string

	BatchSize   int
	Workers     int
	SaveEvery   int
	DelayMin    time.Duration
	DelayMax    time.Duration
	RotateEvery int

	// MaxRetries and BaseDelay drive the per-URL retry policy.
	MaxRetries int
	BaseDelay  time.Duration

	// RequestsPerSecond caps the global request rate; zero is unlimited.
	RequestsPerSecond float64

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// ArticleURLFormat is the article URL with one %d verb for the ID.
	ArticleURLFormat string

	// FeedURL is the RSS feed used to discover the ID range.
	FeedURL string

	// UseReadability enables the readability fallback for content.
	UseReadability bool

	// OutputDir receives timestamped output files.
	// Defaults to the XDG data directory (~/.local/share/protext on Linux).
	OutputDir string

	// OutputFile, when set, is the exact destination file.
	OutputFile string

	// Clean removes earlier content_*.json files from OutputDir first.
	Clean bool

	// SkipExisting pre-claims the IDs already present in the destination.
	SkipExisting bool

	// Categories restricts kept records to these categories.
	Categories []string

	// CategoryManifest is a JSON array of category names to keep.
	CategoryManifest string

	// SampleCategories scrapes the newest N IDs and prints their
	// category histogram before the scan. Zero disables sampling.
	SampleCategories int

	// Analyze prints a category analysis of the output after the scan.
	Analyze bool

	// SQLiteDir, when set, mirrors records into a SQLite database there.
	SQLiteDir string

	// PostgresDSN, when set, mirrors records into Postgres.
	PostgresDSN    string
	PostgresSchema string

	// MetricsAddr, when set, serves Prometheus metrics on that address.
	MetricsAddr string

	// Verbose enables slog.LevelDebug.
	Verbose bool

	// JSONLogs switches log output to JSON lines.
	JSONLogs bool

	// ConfigFilePath is an explicit configuration file path.
	ConfigFilePath string
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		TorProxyAddress:   DefaultTorProxyAddress,
		ControlAddress:    DefaultControlAddress,
		TorStartupTimeout: DefaultTorStartupTimeout,
		Step:              DefaultStep,
		Direction:         model.NewestFirst.String(),
		BatchSize:         DefaultBatchSize,
		Workers:           DefaultWorkers,
		SaveEvery:         DefaultSaveEvery,
		DelayMin:          DefaultDelayMin,
		DelayMax:          DefaultDelayMax,
		RotateEvery:       DefaultRotateEvery,
		MaxRetries:        DefaultMaxRetries,
		BaseDelay:         DefaultBaseDelay,
		MaxBodySize:       DefaultMaxBodySize,
		ArticleURLFormat:  crawler.DefaultArticleURLFormat,
		FeedURL:           crawler.DefaultFeedURL,
		OutputDir:         XDGDataDir(),
		PostgresSchema:    DefaultPostgresSchema,
	}
}

// XDGDataDir returns the XDG data directory for the scraper.
// On Linux: ~/.local/share/protext
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the scraper.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration and returns the first violation.
// A missing output directory is created only when it is the XDG default.
func (c *Config) Validate() error {
	if c.MinID < 0 || c.MaxID < 0 || (c.MinID > 0 && c.MaxID > 0 && c.MinID > c.MaxID) {
		return fmt.Errorf("%w: min %d, max %d", ErrInvalidRange, c.MinID, c.MaxID)
	}
	if c.Step <= 0 {
		return ErrInvalidStep
	}
	if _, err := model.ParseDirection(c.Direction); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, c.Direction)
	}
	if c.Preset != "" {
		if _, ok := LookupPreset(c.Preset); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPreset, c.Preset)
		}
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.SaveEvery <= 0 {
		return ErrInvalidSaveEvery
	}
	if c.DelayMin < 0 || c.DelayMax < c.DelayMin {
		return ErrInvalidDelay
	}
	if c.RotateEvery < 0 {
		return ErrInvalidRotateEvery
	}
	if c.MaxRetries <= 0 {
		return ErrInvalidMaxRetries
	}
	if c.BaseDelay < 0 {
		return ErrInvalidTimeout
	}
	if c.EmbeddedTor && c.TorStartupTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRateLimit
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.SampleCategories < 0 {
		return ErrInvalidSampleSize
	}
	if c.NoTor && c.EmbeddedTor {
		return ErrConflictingTorModes
	}
	if !c.NoTor && !c.EmbeddedTor {
		if err := tor.ValidateAddress(c.TorProxyAddress); err != nil {
			return fmt.Errorf("%w: proxy %q", ErrInvalidProxyAddress, c.TorProxyAddress)
		}
		if err := tor.ValidateAddress(c.ControlAddress); err != nil {
			return fmt.Errorf("%w: control %q", ErrInvalidProxyAddress, c.ControlAddress)
		}
	}
	if !crawler.ValidateURLFormat(c.ArticleURLFormat) {
		return fmt.Errorf("%w: %q", ErrInvalidURLFormat, c.ArticleURLFormat)
	}
	if c.OutputFile == "" {
		return c.checkOutputDir()
	}
	return nil
}

func (c *Config) checkOutputDir() error {
	info, err := os.Stat(c.OutputDir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("%w: %s is not a directory", ErrOutputDirNotFound, c.OutputDir)
	case errors.Is(err, os.ErrNotExist) && c.OutputDir == XDGDataDir():
		return os.MkdirAll(c.OutputDir, 0o750)
	default:
		return fmt.Errorf("%w: %s", ErrOutputDirNotFound, c.OutputDir)
	}
}

// ParsedDirection returns Direction as a model.Direction. Call Validate
// first; an invalid value yields model.NewestFirst.
func (c *Config) ParsedDirection() model.Direction {
	d, err := model.ParseDirection(c.Direction)
	if err != nil {
		return model.NewestFirst
	}
	return d
}

// OutputPath returns the scan destination: OutputFile when set, otherwise
// a timestamped content file in OutputDir.
func (c *Config) OutputPath(now time.Time) string {
	if c.OutputFile != "" {
		return c.OutputFile
	}
	return filepath.Join(c.OutputDir, OutputPrefix+"_"+now.Format("20060102_150405")+".json")
}

// ResolveRange computes the ID range from explicit bounds, the preset and
// the discovered latest/oldest IDs, in that order of precedence.
func (c *Config) ResolveRange(latest, oldest int) model.IDRange {
	minID, maxID := oldest, latest
	if c.Preset != "" {
		if p, ok := LookupPreset(c.Preset); ok {
			minID, maxID = p.Range(latest, oldest)
		}
	}
	if c.MinID > 0 {
		minID = c.MinID
	}
	if c.MaxID > 0 {
		maxID = c.MaxID
	}
	return model.IDRange{Min: minID, Max: maxID, Step: c.Step, Direction: c.ParsedDirection()}
}
