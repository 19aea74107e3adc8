package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-camfilter/internal/log"
	"github.com/teslashibe/go-camfilter/pkg/capture"
	"github.com/teslashibe/go-camfilter/pkg/display"
	"github.com/teslashibe/go-camfilter/pkg/filter"
	"github.com/teslashibe/go-camfilter/pkg/pipeline"
	"github.com/teslashibe/go-camfilter/pkg/web"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Capture from the camera and serve the filtered preview",
	RunE: func(cmd *cobra.Command, args []string) error {
		applySourceFlags(cmd)
		f := cmd.Flags()
		if f.Changed("port") {
			cfg.Port, _ = f.GetString("port")
		}
		if f.Changed("filters") {
			cfg.Filters, _ = f.GetString("filters")
		}
		if f.Changed("request-log") {
			requestLog, _ = f.GetBool("request-log")
		}
		if err := validate(); err != nil {
			return err
		}
		return runServe(cmd.Context())
	},
}

var requestLog bool

func init() {
	addSourceFlags(serveCmd)
	serveCmd.Flags().String("port", "8080", "HTTP port")
	serveCmd.Flags().String("filters", "noir", "filter set: noir, invert, all, or a comma separated list of names")
	serveCmd.Flags().Bool("request-log", false, "log every HTTP request")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	set, err := filter.ParseSet(cfg.Filters)
	if err != nil {
		return err
	}

	logger := log.With("component", "serve")
	logger.Info("starting",
		"version", Version,
		"source", cfg.Source,
		"filters", set.Names(),
		"size", [2]int{cfg.Width, cfg.Height},
		"fps", cfg.FPS,
	)

	sel := filter.NewSelection()
	disp := display.New()
	pipe := pipeline.New(sel, disp)

	src, auth := newSource()
	session := capture.New(src, capture.WithAuthorizer(auth))
	session.SetHandler(pipe.HandleFrame)

	opts := []web.Option{
		web.WithSession(session),
		web.WithPipeline(pipe),
		web.WithDisplay(disp),
	}
	if requestLog {
		opts = append(opts, web.WithRequestLog())
	}
	srv := web.NewServer(cfg.Port, sel, set, opts...)

	jpeg := display.NewJPEGRenderer(cfg.Quality, srv.CameraHub())
	disp.AddRenderer(jpeg)
	srv.LastFrame = jpeg.Last

	go disp.Run(ctx)
	session.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		session.Stop()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
