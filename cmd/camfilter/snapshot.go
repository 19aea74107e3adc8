package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-camfilter/internal/httpc"
	"github.com/teslashibe/go-camfilter/internal/log"
	"github.com/teslashibe/go-camfilter/pkg/capture"
	"github.com/teslashibe/go-camfilter/pkg/display"
	"github.com/teslashibe/go-camfilter/pkg/filter"
	"github.com/teslashibe/go-camfilter/pkg/frame"
	"github.com/teslashibe/go-camfilter/pkg/pipeline"
)

var (
	snapshotFilter string
	snapshotOut    string
	snapshotWarmup int
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture one frame, apply a filter and write it as JPEG",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagServer != "" {
			return remoteSnapshot(cmd.Context(), cmd.Flags().Changed("filter"))
		}

		applySourceFlags(cmd)
		if err := validate(); err != nil {
			return err
		}
		id, ok := filter.ParseID(snapshotFilter)
		if !ok {
			return fmt.Errorf("%w %q", filter.ErrUnknownFilter, snapshotFilter)
		}
		return localSnapshot(cmd.Context(), id)
	},
}

func init() {
	addSourceFlags(snapshotCmd)
	addServerFlag(snapshotCmd)
	f := snapshotCmd.Flags()
	f.StringVar(&snapshotFilter, "filter", filter.Normal.String(), "filter name to apply")
	f.StringVarP(&snapshotOut, "out", "o", "snapshot.jpg", "output file")
	f.IntVar(&snapshotWarmup, "warmup", 5, "frames to discard while the sensor settles")
	rootCmd.AddCommand(snapshotCmd)
}

func localSnapshot(ctx context.Context, id filter.ID) error {
	src, auth := newSource()
	if err := authorize(ctx, auth); err != nil {
		return err
	}

	if err := src.Open(ctx); err != nil {
		return err
	}
	defer src.Close()

	var f *frame.Frame
	for i := 0; i <= snapshotWarmup; i++ {
		var err error
		if f, err = src.Read(ctx); err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
	}

	img, err := pipeline.Process(f, id)
	if err != nil {
		return err
	}
	data, err := display.EncodeJPEG(img, cfg.Quality)
	if err != nil {
		return err
	}
	if err := os.WriteFile(snapshotOut, data, 0o644); err != nil {
		return err
	}

	log.Info("snapshot written", "path", snapshotOut, "filter", id.String(),
		"width", img.Rect.Dx(), "height", img.Rect.Dy(), "source", src.Name())
	return nil
}

// authorize applies the same gate as a capture session, but reports a
// refusal as an error since there is nothing to show instead.
func authorize(ctx context.Context, auth capture.Authorizer) error {
	switch status := auth.Status(); status {
	case capture.StatusAuthorized:
		return nil
	case capture.StatusNotDetermined:
		granted, err := auth.RequestAccess(ctx)
		if err != nil {
			return err
		}
		if !granted {
			return fmt.Errorf("camera access not granted")
		}
		return nil
	default:
		return fmt.Errorf("camera %s", status)
	}
}

// remoteSnapshot saves the frame a running server has on screen, optionally
// switching its filter first.
func remoteSnapshot(ctx context.Context, switchFilter bool) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	client := httpc.New(flagServer, requestTimeout)
	if switchFilter {
		if _, err := client.SetFilter(ctx, snapshotFilter); err != nil {
			return err
		}
	}
	data, err := client.Frame(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(snapshotOut, data, 0o644); err != nil {
		return err
	}
	log.Info("snapshot written", "path", snapshotOut, "server", client.Base(), "bytes", len(data))
	return nil
}
