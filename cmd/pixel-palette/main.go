package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/ironsheep/pixel-palette/internal/config"
	"github.com/ironsheep/pixel-palette/internal/imaging"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// errUsage marks command-line mistakes; the message has already been printed.
var errUsage = errors.New("usage error")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printHelp(stderr)
		return 2
	}

	var cmd func([]string, io.Writer, io.Writer) error
	switch args[0] {
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "pixel-palette %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return 0
	case "--help", "-h", "help":
		printHelp(stdout)
		return 0
	case "serve":
		cmd = runServe
	case "mcp":
		cmd = runMCP
	case "filter":
		cmd = runFilter
	case "extract":
		cmd = runExtract
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printHelp(stderr)
		return 2
	}

	if err := cmd(args[1:], stdout, stderr); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, pflag.ErrHelp) {
			return 2
		}
		log.Error().Err(err).Str("command", args[0]).Msg("command failed")
		return 1
	}
	return 0
}

// loadConfig parses flags registered on fs plus the shared configuration
// flags, then loads the configuration and sets up logging.
func loadConfig(fs *pflag.FlagSet, args []string, stderr io.Writer) (*config.Config, error) {
	config.RegisterFlags(fs)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return nil, errUsage
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return nil, err
	}
	if err := config.SetupLogging(cfg.Log, stderr); err != nil {
		return nil, err
	}
	if cfg.File != "" {
		log.Debug().Str("file", cfg.File).Msg("loaded config file")
	}
	return cfg, nil
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "pixel-palette - palette-quantizing pixel-art filter")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: pixel-palette <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Run the web front end")
	fmt.Fprintln(w, "  mcp        Run the MCP server on stdin/stdout")
	fmt.Fprintln(w, "  filter     Filter one image file")
	fmt.Fprintln(w, "  extract    Print a palette derived from an image as a LUT")
	fmt.Fprintln(w, "  version    Print version information")
	fmt.Fprintln(w, "  help       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Filter:")
	fmt.Fprintln(w, "  pixel-palette filter --image F (--lut NAME | --lut-file F) [--scale P] [--dither] [--outlines] [--out DIR]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Extract:")
	fmt.Fprintln(w, "  pixel-palette extract --image F [--count K] [--method dominant|kmeans]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Shared options:")
	fmt.Fprintln(w, "  --config FILE        TOML config file (default ./pixel-palette.toml if present)")
	fmt.Fprintln(w, "  --addr ADDR          HTTP listen address")
	fmt.Fprintln(w, "  --palettes DIR       Palette directory")
	fmt.Fprintln(w, "  --storage-root DIR   Upload and result directory")
	fmt.Fprintf(w, "  --format FORMAT      Output format: %s or %s\n", imaging.FormatJPEG, imaging.FormatPNG)
	fmt.Fprintln(w, "  --log-level LEVEL    debug, info, warn or error")
	fmt.Fprintln(w, "  --log-format FORMAT  console or json")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Every option can also be set with %s_* environment variables,\n", config.EnvPrefix)
	fmt.Fprintf(w, "e.g. %s_SERVER_ADDR=:9000. Logs go to stderr.\n", config.EnvPrefix)
}
