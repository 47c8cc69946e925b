package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/pixel-palette/internal/imaging"
)

func parseFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pixel-palette.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "luts", cfg.Palettes.Dir)
	assert.Equal(t, filepath.Join(os.TempDir(), "pixel_palette_uploads"), cfg.Storage.Root)
	assert.Equal(t, int64(1<<30), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, time.Hour, cfg.Storage.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Storage.SweepInterval)
	assert.Equal(t, imaging.FormatJPEG, cfg.Output.Format)
	assert.Equal(t, 90, cfg.Output.Quality)
	assert.Equal(t, 70, cfg.Output.PreviewQuality)
	assert.Equal(t, 512, cfg.Output.PreviewSize)
	assert.Equal(t, uint8(40), cfg.Filter.OutlineThreshold)
	assert.Equal(t, 3, cfg.Filter.OutlineThickness)
	assert.Equal(t, imaging.EdgeLaplacian, cfg.Filter.EdgeOperator)
	assert.Equal(t, "floyd-steinberg", cfg.Filter.DitherMatrix)
	assert.False(t, cfg.Filter.Serpentine)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.File)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = "127.0.0.1:9000"

[palettes]
dir = "/srv/luts"

[storage]
ttl = "30m"
max_upload_bytes = 1048576

[output]
format = "png"

[filter]
outline_threshold = 64
edge_operator = "sobel"
dither_matrix = "Atkinson"
serpentine = true

[log]
level = "debug"
format = "json"
`)

	cfg, err := Load(parseFlags(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "/srv/luts", cfg.Palettes.Dir)
	assert.Equal(t, 30*time.Minute, cfg.Storage.TTL)
	assert.Equal(t, int64(1<<20), cfg.Storage.MaxUploadBytes)
	assert.Equal(t, imaging.FormatPNG, cfg.Output.Format)
	assert.Equal(t, uint8(64), cfg.Filter.OutlineThreshold)
	assert.Equal(t, imaging.EdgeSobel, cfg.Filter.EdgeOperator)
	assert.Equal(t, "atkinson", cfg.Filter.DitherMatrix)
	assert.True(t, cfg.Filter.Serpentine)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":7000"

[palettes]
dir = "from-file"
`)
	t.Setenv("PIXEL_PALETTE_PALETTES_DIR", "from-env")
	t.Setenv("PIXEL_PALETTE_OUTPUT_QUALITY", "55")

	cfg, err := Load(parseFlags(t, "--config", path, "--addr", ":6000"))
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.Server.Addr, "flag beats file")
	assert.Equal(t, "from-env", cfg.Palettes.Dir, "env beats file")
	assert.Equal(t, 55, cfg.Output.Quality, "env beats default")
}

func TestLoadUnsetFlagsDoNotOverride(t *testing.T) {
	t.Setenv("PIXEL_PALETTE_SERVER_ADDR", ":5000")

	cfg, err := Load(parseFlags(t))
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Server.Addr)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(parseFlags(t, "--config", filepath.Join(t.TempDir(), "nope.toml")))
	assert.Error(t, err)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"format", "PIXEL_PALETTE_OUTPUT_FORMAT", "gif"},
		{"quality", "PIXEL_PALETTE_OUTPUT_QUALITY", "0"},
		{"preview quality", "PIXEL_PALETTE_OUTPUT_PREVIEW_QUALITY", "101"},
		{"preview size", "PIXEL_PALETTE_OUTPUT_PREVIEW_SIZE", "0"},
		{"ttl", "PIXEL_PALETTE_STORAGE_TTL", "soon"},
		{"negative ttl", "PIXEL_PALETTE_STORAGE_TTL", "-1h"},
		{"sweep interval", "PIXEL_PALETTE_STORAGE_SWEEP_INTERVAL", "often"},
		{"max upload", "PIXEL_PALETTE_STORAGE_MAX_UPLOAD_BYTES", "-1"},
		{"threshold", "PIXEL_PALETTE_FILTER_OUTLINE_THRESHOLD", "300"},
		{"thickness", "PIXEL_PALETTE_FILTER_OUTLINE_THICKNESS", "-2"},
		{"operator", "PIXEL_PALETTE_FILTER_EDGE_OPERATOR", "canny"},
		{"matrix", "PIXEL_PALETTE_FILTER_DITHER_MATRIX", "bayer"},
		{"log level", "PIXEL_PALETTE_LOG_LEVEL", "loud"},
		{"log format", "PIXEL_PALETTE_LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			_, err := Load(nil)
			assert.Error(t, err)
		})
	}
}

func TestDerivedSettings(t *testing.T) {
	cfg, err := Load(parseFlags(t, "--format", "png"))
	require.NoError(t, err)

	s := cfg.PipelineSettings()
	assert.Equal(t, "floyd-steinberg", s.DitherMatrix)
	assert.Equal(t, imaging.DefaultOutlineOptions(), s.Outline)
	assert.Equal(t, 512, s.PreviewSize)

	enc := cfg.Encoding()
	assert.Equal(t, imaging.FormatPNG, enc.Format)
	assert.Equal(t, 90, enc.Quality)
	assert.Equal(t, 70, enc.PreviewQuality)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"trace", zerolog.NoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLoggingJSON(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	require.NoError(t, SetupLogging(LogConfig{Level: "warn", Format: "json"}, &buf))

	log.Info().Msg("hidden")
	log.Warn().Str("palette", "gameboy.txt").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"palette":"gameboy.txt"`)
}

func TestSetupLoggingRejectsBadLevel(t *testing.T) {
	assert.Error(t, SetupLogging(LogConfig{Level: "chatty"}, &bytes.Buffer{}))
}
