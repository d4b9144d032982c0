// Package config loads minirag settings from defaults, YAML files, a .env
// file, and MINIRAG_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	raerrors "github.com/Aman-CERP/minirag/internal/errors"
)

const (
	// ProjectConfigName is the per-directory config file.
	ProjectConfigName = ".minirag.yaml"

	// EnvFileName is loaded from the working directory when present.
	EnvFileName = ".env"

	envPrefix = "MINIRAG_"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Scorers selectable through search.scorer.
const (
	ScorerOverlap  = "overlap"
	ScorerWeighted = "weighted"
	ScorerIDF      = "idf"
)

// Config represents the complete minirag configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Chunking    ChunkingConfig    `yaml:"chunking" json:"chunking"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Upload      UploadConfig      `yaml:"upload" json:"upload"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// ChunkingConfig configures the fixed-window chunker.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// SearchConfig configures retrieval defaults. Per-query values override
// MaxResults and SimilarityThreshold.
type SearchConfig struct {
	MaxResults          int     `yaml:"max_results" json:"max_results"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// Scorer is one of "overlap" (default), "weighted", or "idf".
	Scorer string `yaml:"scorer" json:"scorer"`

	// CacheSize bounds the query result cache; 0 disables it.
	CacheSize     int `yaml:"cache_size" json:"cache_size"`
	PreviewLength int `yaml:"preview_length" json:"preview_length"`
}

// UploadConfig mirrors the upload limits of the web front end.
type UploadConfig struct {
	MaxFileSize       int64    `yaml:"max_file_size" json:"max_file_size"`
	AllowedExtensions []string `yaml:"allowed_extensions" json:"allowed_extensions"`
}

// StorageConfig selects where documents live.
type StorageConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// PerformanceConfig configures ingestion concurrency.
type PerformanceConfig struct {
	IngestWorkers int    `yaml:"ingest_workers" json:"ingest_workers"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// ServerConfig configures the MCP server and daemon.
type ServerConfig struct {
	Transport  string `yaml:"transport" json:"transport"`
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Search: SearchConfig{
			MaxResults:          5,
			SimilarityThreshold: 0.7,
			Scorer:              ScorerOverlap,
			CacheSize:           256,
			PreviewLength:       200,
		},
		Upload: UploadConfig{
			MaxFileSize:       10 * 1024 * 1024,
			AllowedExtensions: []string{"pdf", "txt", "docx", "md"},
		},
		Storage: StorageConfig{
			Backend: BackendFile,
			DataDir: defaultDataDir(),
		},
		Performance: PerformanceConfig{
			IngestWorkers: min(runtime.NumCPU(), 8),
			WatchDebounce: "500ms",
		},
		Server: ServerConfig{
			Transport:  "stdio",
			SocketPath: filepath.Join(HomeDir(), "daemon.sock"),
			LogLevel:   "info",
		},
	}
}

// HomeDir is ~/.minirag, falling back to the temp dir when HOME is unset.
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".minirag")
	}
	return filepath.Join(home, ".minirag")
}

func defaultDataDir() string {
	return filepath.Join(HomeDir(), "data")
}

// GetUserConfigPath returns the path to the user-level config file.
// Respects XDG_CONFIG_HOME when set.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "minirag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "minirag", "config.yaml")
	}
	return filepath.Join(home, ".config", "minirag", "config.yaml")
}

// Load builds the effective configuration for dir.
//
// Precedence, lowest to highest: defaults, user config, project
// .minirag.yaml, .env (never overriding variables already set), then
// MINIRAG_* environment variables.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, err
		}
	}

	if projectPath := filepath.Join(dir, ProjectConfigName); fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	if err := loadEnvFile(filepath.Join(dir, EnvFileName)); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads KEY=VALUE pairs without clobbering the real environment.
func loadEnvFile(path string) error {
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return raerrors.New(raerrors.ErrCodeConfigRead, fmt.Sprintf("failed to load %s", path), err)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return raerrors.New(raerrors.ErrCodeConfigRead, fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return raerrors.ConfigurationError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays every non-zero field of other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Chunking.ChunkSize != 0 {
		c.Chunking.ChunkSize = other.Chunking.ChunkSize
	}
	if other.Chunking.ChunkOverlap != 0 {
		c.Chunking.ChunkOverlap = other.Chunking.ChunkOverlap
	}

	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.SimilarityThreshold != 0 {
		c.Search.SimilarityThreshold = other.Search.SimilarityThreshold
	}
	if other.Search.Scorer != "" {
		c.Search.Scorer = other.Search.Scorer
	}
	if other.Search.CacheSize != 0 {
		c.Search.CacheSize = other.Search.CacheSize
	}
	if other.Search.PreviewLength != 0 {
		c.Search.PreviewLength = other.Search.PreviewLength
	}

	if other.Upload.MaxFileSize != 0 {
		c.Upload.MaxFileSize = other.Upload.MaxFileSize
	}
	if len(other.Upload.AllowedExtensions) > 0 {
		c.Upload.AllowedExtensions = other.Upload.AllowedExtensions
	}

	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}

	if other.Performance.IngestWorkers != 0 {
		c.Performance.IngestWorkers = other.Performance.IngestWorkers
	}
	if other.Performance.WatchDebounce != "" {
		c.Performance.WatchDebounce = other.Performance.WatchDebounce
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.SocketPath != "" {
		c.Server.SocketPath = other.Server.SocketPath
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides reads MINIRAG_* variables. Unparseable numbers are a
// configuration error rather than silently ignored.
func (c *Config) applyEnvOverrides() error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"CHUNK_SIZE", &c.Chunking.ChunkSize},
		{"CHUNK_OVERLAP", &c.Chunking.ChunkOverlap},
		{"MAX_RESULTS", &c.Search.MaxResults},
		{"CACHE_SIZE", &c.Search.CacheSize},
		{"INGEST_WORKERS", &c.Performance.IngestWorkers},
	}
	for _, o := range ints {
		v := os.Getenv(envPrefix + o.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return envError(o.name, v, err)
		}
		*o.dst = n
	}

	if v := os.Getenv(envPrefix + "SIMILARITY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return envError("SIMILARITY_THRESHOLD", v, err)
		}
		c.Search.SimilarityThreshold = f
	}
	if v := os.Getenv(envPrefix + "MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return envError("MAX_FILE_SIZE", v, err)
		}
		c.Upload.MaxFileSize = n
	}
	if v := os.Getenv(envPrefix + "ALLOWED_EXTENSIONS"); v != "" {
		var exts []string
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				exts = append(exts, e)
			}
		}
		c.Upload.AllowedExtensions = exts
	}

	if v := os.Getenv(envPrefix + "SCORER"); v != "" {
		c.Search.Scorer = v
	}
	if v := os.Getenv(envPrefix + "STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv(envPrefix + "DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv(envPrefix + "SOCKET_PATH"); v != "" {
		c.Server.SocketPath = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	return nil
}

func envError(name, value string, err error) error {
	return raerrors.ConfigurationError(fmt.Sprintf("invalid %s%s=%q", envPrefix, name, value), err)
}

// Validate returns a ConfigurationError describing the first invalid field.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return raerrors.ConfigurationError(fmt.Sprintf(format, args...), nil)
	}

	if c.Chunking.ChunkSize <= 0 {
		return invalid("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return invalid("chunking.chunk_overlap must be non-negative, got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return invalid("chunking.chunk_overlap (%d) must be less than chunk_size (%d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}

	if c.Search.MaxResults <= 0 {
		return invalid("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.SimilarityThreshold < 0 || c.Search.SimilarityThreshold > 1 {
		return invalid("search.similarity_threshold must be between 0 and 1, got %g", c.Search.SimilarityThreshold)
	}
	switch c.Search.Scorer {
	case ScorerOverlap, ScorerWeighted, ScorerIDF:
	default:
		return invalid("search.scorer must be 'overlap', 'weighted', or 'idf', got %q", c.Search.Scorer)
	}
	if c.Search.CacheSize < 0 {
		return invalid("search.cache_size must be non-negative, got %d", c.Search.CacheSize)
	}
	if c.Search.PreviewLength <= 0 {
		return invalid("search.preview_length must be positive, got %d", c.Search.PreviewLength)
	}

	if c.Upload.MaxFileSize <= 0 {
		return invalid("upload.max_file_size must be positive, got %d", c.Upload.MaxFileSize)
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return invalid("upload.allowed_extensions cannot be empty")
	}

	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return invalid("storage.backend must be 'file' or 'sqlite', got %q", c.Storage.Backend)
	}
	if c.Storage.DataDir == "" {
		return invalid("storage.data_dir cannot be empty")
	}

	if c.Performance.IngestWorkers <= 0 {
		return invalid("performance.ingest_workers must be positive, got %d", c.Performance.IngestWorkers)
	}

	if c.Server.Transport != "stdio" {
		return invalid("server.transport must be 'stdio', got %q", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return invalid("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file, creating parent dirs.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
