package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-camfilter/internal/config"
	"github.com/teslashibe/go-camfilter/internal/log"
	"github.com/teslashibe/go-camfilter/pkg/capture"
	"github.com/teslashibe/go-camfilter/pkg/webcam"
)

// Version is the application version.
const Version = "0.3.0"

var (
	// cfg is loaded before any subcommand runs: defaults, then .env and
	// the environment, then flags the user actually set.
	cfg config.Config

	flagLogLevel string
	flagServer   string
)

var rootCmd = &cobra.Command{
	Use:           "camfilter",
	Short:         "Live camera preview with a selectable image filter",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = flagLogLevel
		}
		log.InitWriter(os.Stderr, cfg.LogLevel)
		return nil
	},
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "camfilter:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
}

// addServerFlag registers --server on commands that can talk to a running preview.
func addServerFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagServer, "server", "", "URL of a running preview server, e.g. http://localhost:8080")
}

// addSourceFlags registers the capture flags shared by serve and snapshot.
func addSourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("source", config.DefaultSource, "frame source: camera or pattern")
	f.Int("device", config.DefaultDevice, "camera index (/dev/videoN)")
	f.Int("width", config.DefaultWidth, "capture width")
	f.Int("height", config.DefaultHeight, "capture height")
	f.Int("fps", config.DefaultFPS, "capture frame rate")
	f.Bool("portrait", true, "rotate camera frames to portrait")
	f.Int("quality", config.DefaultQuality, "JPEG quality 1-100")
}

// applySourceFlags overlays flags the user set onto cfg.
func applySourceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("source") {
		cfg.Source, _ = f.GetString("source")
	}
	if f.Changed("device") {
		cfg.Device, _ = f.GetInt("device")
	}
	if f.Changed("width") {
		cfg.Width, _ = f.GetInt("width")
	}
	if f.Changed("height") {
		cfg.Height, _ = f.GetInt("height")
	}
	if f.Changed("fps") {
		cfg.FPS, _ = f.GetInt("fps")
	}
	if f.Changed("portrait") {
		cfg.Portrait, _ = f.GetBool("portrait")
	}
	if f.Changed("quality") {
		cfg.Quality, _ = f.GetInt("quality")
	}
}

// validate reports every problem with cfg at once.
func validate() error {
	if errs := cfg.Validate(); len(errs) > 0 {
		msg := "invalid configuration:"
		for _, e := range errs {
			msg += "\n  - " + e
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

// newSource builds the configured frame source and the authorizer that gates it.
func newSource() (capture.Source, capture.Authorizer) {
	if cfg.Source == config.SourcePattern {
		return capture.NewPatternSource(cfg.Width, cfg.Height, cfg.FPS),
			capture.StaticAuthorizer(capture.StatusAuthorized)
	}
	src := webcam.New(webcam.Config{
		Device:   cfg.Device,
		Width:    cfg.Width,
		Height:   cfg.Height,
		FPS:      cfg.FPS,
		Portrait: cfg.Portrait,
	})
	return src, capture.DeviceAuthorizer{Path: cfg.DevicePath()}
}

// requestTimeout bounds one-shot calls against a running server.
const requestTimeout = 10 * time.Second
