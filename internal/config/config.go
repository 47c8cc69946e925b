// Package config loads pixel-palette settings from defaults, an optional
// TOML file, PIXEL_PALETTE_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ironsheep/pixel-palette/internal/imaging"
	"github.com/ironsheep/pixel-palette/internal/pipeline"
)

// EnvPrefix prefixes every environment variable, e.g. PIXEL_PALETTE_SERVER_ADDR.
const EnvPrefix = "PIXEL_PALETTE"

// DefaultConfigName is the config file looked up in the working directory
// when --config is not given.
const DefaultConfigName = "pixel-palette"

// Config is the complete runtime configuration. It is built once at startup
// and passed explicitly to the components that need it.
type Config struct {
	Server   ServerConfig
	Palettes PalettesConfig
	Storage  StorageConfig
	Output   OutputConfig
	Filter   FilterConfig
	Log      LogConfig

	// File is the config file that was read, empty if none.
	File string
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr string
}

// PalettesConfig locates the palette library.
type PalettesConfig struct {
	Dir string
}

// StorageConfig configures the upload store.
type StorageConfig struct {
	Root           string
	MaxUploadBytes int64
	TTL            time.Duration
	SweepInterval  time.Duration
}

// OutputConfig selects how results are encoded.
type OutputConfig struct {
	Format         imaging.Format
	Quality        int
	PreviewQuality int
	PreviewSize    int
}

// FilterConfig holds the pipeline knobs that are not per-request choices.
type FilterConfig struct {
	OutlineThreshold uint8
	OutlineThickness int
	EdgeOperator     imaging.EdgeOperator
	DitherMatrix     string
	Serpentine       bool
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string
	Format string
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"palettes":     "palettes.dir",
	"storage-root": "storage.root",
	"format":       "output.format",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// RegisterFlags adds the shared configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a TOML config file")
	fs.String("addr", "", "HTTP listen address (default \":8080\")")
	fs.String("palettes", "", "directory of palette .txt files (default \"luts\")")
	fs.String("storage-root", "", "directory for uploads and results")
	fs.String("format", "", "output format: jpeg or png")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	fs.String("log-format", "", "log format: console or json")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("palettes.dir", "luts")
	v.SetDefault("storage.root", filepath.Join(os.TempDir(), "pixel_palette_uploads"))
	v.SetDefault("storage.max_upload_bytes", int64(1<<30))
	v.SetDefault("storage.ttl", "1h")
	v.SetDefault("storage.sweep_interval", "5m")
	v.SetDefault("output.format", string(imaging.FormatJPEG))
	v.SetDefault("output.quality", 90)
	v.SetDefault("output.preview_quality", 70)
	v.SetDefault("output.preview_size", imaging.DefaultPreviewSize)
	v.SetDefault("filter.outline_threshold", imaging.DefaultOutlineThreshold)
	v.SetDefault("filter.outline_thickness", imaging.DefaultOutlineThickness)
	v.SetDefault("filter.edge_operator", string(imaging.EdgeLaplacian))
	v.SetDefault("filter.dither_matrix", imaging.DefaultMatrix)
	v.SetDefault("filter.serpentine", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load builds the configuration. fs may be nil; otherwise it must have been
// prepared with RegisterFlags and parsed. Only flags the user actually set
// override other sources.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		File:     v.ConfigFileUsed(),
		Server:   ServerConfig{Addr: v.GetString("server.addr")},
		Palettes: PalettesConfig{Dir: v.GetString("palettes.dir")},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	var err error

	cfg.Storage.Root = v.GetString("storage.root")
	if cfg.Storage.Root == "" {
		return nil, errors.New("storage.root must not be empty")
	}
	cfg.Storage.MaxUploadBytes = v.GetInt64("storage.max_upload_bytes")
	if cfg.Storage.MaxUploadBytes < 0 {
		return nil, fmt.Errorf("storage.max_upload_bytes must not be negative, got %d", cfg.Storage.MaxUploadBytes)
	}
	if cfg.Storage.TTL, err = duration(v, "storage.ttl"); err != nil {
		return nil, err
	}
	if cfg.Storage.SweepInterval, err = duration(v, "storage.sweep_interval"); err != nil {
		return nil, err
	}

	if cfg.Output.Format, err = imaging.ParseFormat(v.GetString("output.format")); err != nil {
		return nil, fmt.Errorf("output.format: %w", err)
	}
	if cfg.Output.Quality, err = quality(v, "output.quality"); err != nil {
		return nil, err
	}
	if cfg.Output.PreviewQuality, err = quality(v, "output.preview_quality"); err != nil {
		return nil, err
	}
	cfg.Output.PreviewSize = v.GetInt("output.preview_size")
	if cfg.Output.PreviewSize <= 0 {
		return nil, fmt.Errorf("output.preview_size must be positive, got %d", cfg.Output.PreviewSize)
	}

	threshold := v.GetInt("filter.outline_threshold")
	if threshold < 0 || threshold > 255 {
		return nil, fmt.Errorf("filter.outline_threshold must be within 0..255, got %d", threshold)
	}
	cfg.Filter.OutlineThreshold = uint8(threshold)
	cfg.Filter.OutlineThickness = v.GetInt("filter.outline_thickness")
	if cfg.Filter.OutlineThickness < 0 {
		return nil, fmt.Errorf("filter.outline_thickness must not be negative, got %d", cfg.Filter.OutlineThickness)
	}
	if cfg.Filter.EdgeOperator, err = imaging.ParseEdgeOperator(v.GetString("filter.edge_operator")); err != nil {
		return nil, fmt.Errorf("filter.edge_operator: %w", err)
	}
	cfg.Filter.DitherMatrix = strings.ToLower(v.GetString("filter.dither_matrix"))
	if _, err := imaging.LookupMatrix(cfg.Filter.DitherMatrix); err != nil {
		return nil, fmt.Errorf("filter.dither_matrix: %w", err)
	}
	cfg.Filter.Serpentine = v.GetBool("filter.serpentine")

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return nil, fmt.Errorf("log.format must be console or json, got %q", cfg.Log.Format)
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, d)
	}
	return d, nil
}

func quality(v *viper.Viper, key string) (int, error) {
	q := v.GetInt(key)
	if q < 1 || q > 100 {
		return 0, fmt.Errorf("%s must be within 1..100, got %d", key, q)
	}
	return q, nil
}

// PipelineSettings derives the pipeline settings.
func (c *Config) PipelineSettings() pipeline.Settings {
	return pipeline.Settings{
		DitherMatrix: c.Filter.DitherMatrix,
		Serpentine:   c.Filter.Serpentine,
		Outline: imaging.OutlineOptions{
			Operator:  c.Filter.EdgeOperator,
			Threshold: c.Filter.OutlineThreshold,
			Thickness: c.Filter.OutlineThickness,
		},
		PreviewSize: c.Output.PreviewSize,
	}
}

// Encoding derives the output encoding.
func (c *Config) Encoding() pipeline.Encoding {
	return pipeline.Encoding{
		Format:         c.Output.Format,
		Quality:        c.Output.Quality,
		PreviewQuality: c.Output.PreviewQuality,
	}
}
