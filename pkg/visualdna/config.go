package visualdna

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/himanishpuri/VisualDNA/pkg/visualdna/audio"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/fingerprint"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/rank"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/storage"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/video"
)

// StorageConfig locates the catalog database and scratch space.
type StorageConfig struct {
	DBPath  string `toml:"db_path"`
	TempDir string `toml:"temp_dir"`
}

type FingerprintConfig struct {
	Hasher           string  `toml:"hasher"`
	SamplesPerSecond float64 `toml:"samples_per_second"`
	FFmpegPath       string  `toml:"ffmpeg_path"`
}

type AudioConfig struct {
	Enabled       bool    `toml:"enabled"`
	SampleRate    int     `toml:"sample_rate"`
	MaxSeconds    int     `toml:"max_seconds"`
	MinConfidence float64 `toml:"min_confidence"`
	MinVotes      int     `toml:"min_votes"`
}

type SearchConfig struct {
	TopK         int     `toml:"top_k"`
	VisualWeight float64 `toml:"visual_weight"`
	Workers      int     `toml:"workers"`
}

// CacheConfig enables the fingerprint cache when Dir is set.
type CacheConfig struct {
	Dir      string `toml:"dir"`
	TTLHours int    `toml:"ttl_hours"`
}

type ServerConfig struct {
	Port     int    `toml:"port"`
	Password string `toml:"password"`
	// MaxUploadMB bounds multipart uploads.
	MaxUploadMB int `toml:"max_upload_mb"`
	// AllowedOrigins lists CORS origins; "*" allows all.
	AllowedOrigins []string `toml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config holds every tunable of the service. The file form is TOML; the
// non-TOML fields are injected through Options.
type Config struct {
	Storage     StorageConfig     `toml:"storage"`
	Fingerprint FingerprintConfig `toml:"fingerprint"`
	Audio       AudioConfig       `toml:"audio"`
	Search      SearchConfig      `toml:"search"`
	Cache       CacheConfig       `toml:"cache"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`

	Logger Logger      `toml:"-"`
	Store  Storage     `toml:"-"`
	Frames FrameOpener `toml:"-"`
	Audios AudioLoader `toml:"-"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			DBPath:  storage.DefaultDBFile,
			TempDir: os.TempDir(),
		},
		Fingerprint: FingerprintConfig{
			Hasher:           fingerprint.HasherPHash,
			SamplesPerSecond: video.DefaultSamplesPerSecond,
		},
		Audio: AudioConfig{
			Enabled:       true,
			SampleRate:    audio.DefaultSampleRate,
			MaxSeconds:    180,
			MinConfidence: 50,
			MinVotes:      5,
		},
		Search: SearchConfig{
			TopK:         rank.DefaultTopK,
			VisualWeight: 100,
			Workers:      runtime.GOMAXPROCS(0),
		},
		Server: ServerConfig{
			Port:           8080,
			MaxUploadMB:    512,
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig reads a TOML file over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		default:
			defer f.Close()
			if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(&cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VISUALDNA_DB_PATH"); v != "" {
		c.Storage.DBPath = v
	}
	if v := os.Getenv("VISUALDNA_TEMP_DIR"); v != "" {
		c.Storage.TempDir = v
	}
	if v, ok := os.LookupEnv("VISUALDNA_PASSWORD"); ok {
		c.Server.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// normalize fills zero values left by a partial file.
func (c *Config) normalize() {
	def := DefaultConfig()
	if strings.TrimSpace(c.Storage.DBPath) == "" {
		c.Storage.DBPath = def.Storage.DBPath
	}
	if strings.TrimSpace(c.Storage.TempDir) == "" {
		c.Storage.TempDir = def.Storage.TempDir
	}
	if c.Fingerprint.Hasher == "" {
		c.Fingerprint.Hasher = def.Fingerprint.Hasher
	}
	if c.Fingerprint.SamplesPerSecond == 0 {
		c.Fingerprint.SamplesPerSecond = def.Fingerprint.SamplesPerSecond
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.MinVotes == 0 {
		c.Audio.MinVotes = def.Audio.MinVotes
	}
	if c.Search.TopK == 0 {
		c.Search.TopK = def.Search.TopK
	}
	if c.Search.Workers == 0 {
		c.Search.Workers = def.Search.Workers
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = def.Server.MaxUploadMB
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if _, err := fingerprint.NewHasher(c.Fingerprint.Hasher); err != nil {
		return fmt.Errorf("fingerprint.hasher: %w", err)
	}
	if c.Fingerprint.SamplesPerSecond < 0 {
		return errors.New("fingerprint.samples_per_second must be positive")
	}
	if c.Audio.SampleRate < 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if c.Audio.MinConfidence < 0 || c.Audio.MinConfidence > 100 {
		return errors.New("audio.min_confidence must be between 0 and 100")
	}
	if c.Audio.MinVotes < 0 {
		return errors.New("audio.min_votes must not be negative")
	}
	if c.Search.TopK < 0 {
		return errors.New("search.top_k must not be negative")
	}
	if c.Search.Workers < 0 {
		return errors.New("search.workers must not be negative")
	}
	if c.Search.VisualWeight < 0 || c.Search.VisualWeight > 100 {
		return errors.New("search.visual_weight must be between 0 and 100")
	}
	if c.Cache.TTLHours < 0 {
		return errors.New("cache.ttl_hours must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format %q must be console or json", c.Log.Format)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("log.level %q is not a known level", c.Log.Level)
	}
	return nil
}

// Option customizes the Config NewService starts from.
type Option func(*Config)

// WithConfig replaces every file-backed setting with cfg. Injected
// collaborators already set on the target are kept.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		logger, store, frames, audios := c.Logger, c.Store, c.Frames, c.Audios
		*c = cfg
		if c.Logger == nil {
			c.Logger = logger
		}
		if c.Store == nil {
			c.Store = store
		}
		if c.Frames == nil {
			c.Frames = frames
		}
		if c.Audios == nil {
			c.Audios = audios
		}
	}
}

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.Storage.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.Storage.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.Audio.SampleRate = rate
	}
}

func WithSamplesPerSecond(sps float64) Option {
	return func(c *Config) {
		c.Fingerprint.SamplesPerSecond = sps
	}
}

func WithHasher(name string) Option {
	return func(c *Config) {
		c.Fingerprint.Hasher = name
	}
}

// WithAudio turns the soundtrack signal on or off.
func WithAudio(enabled bool) Option {
	return func(c *Config) {
		c.Audio.Enabled = enabled
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Search.Workers = n
	}
}

// WithCacheDir enables the fingerprint cache in dir.
func WithCacheDir(dir string) Option {
	return func(c *Config) {
		c.Cache.Dir = dir
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(s Storage) Option {
	return func(c *Config) {
		c.Store = s
	}
}

// WithFrameOpener replaces the ffmpeg frame sampler.
func WithFrameOpener(o FrameOpener) Option {
	return func(c *Config) {
		c.Frames = o
	}
}

// WithAudioLoader replaces the ffmpeg soundtrack extractor.
func WithAudioLoader(l AudioLoader) Option {
	return func(c *Config) {
		c.Audios = l
	}
}
