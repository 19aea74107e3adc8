package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-camfilter/internal/log"
)

var (
	watchCount int
	watchDir   string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Save frames streamed by a running preview server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagServer == "" {
			flagServer = "http://localhost:" + cfg.Port
		}
		if watchCount < 1 {
			return fmt.Errorf("--count must be at least 1")
		}
		return runWatch(cmd.Context())
	},
}

func init() {
	addServerFlag(watchCmd)
	f := watchCmd.Flags()
	f.IntVarP(&watchCount, "count", "n", 10, "number of frames to save")
	f.StringVarP(&watchDir, "dir", "d", "frames", "output directory")
	rootCmd.AddCommand(watchCmd)
}

// cameraURL maps the server's HTTP URL onto its camera websocket.
func cameraURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in %q", server)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/camera"
	return u.String(), nil
}

func runWatch(ctx context.Context) error {
	wsURL, err := cameraURL(flagServer)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(watchDir, 0o755); err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	ws, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer ws.Close()

	// Unblock ReadMessage on Ctrl+C.
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	logger := log.With("component", "watch", "url", wsURL)
	logger.Info("watching", "frames", watchCount, "dir", watchDir)

	saved := 0
	for saved < watchCount {
		ws.SetReadDeadline(time.Now().Add(requestTimeout))
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}

		path := filepath.Join(watchDir, fmt.Sprintf("frame-%04d.jpg", saved))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		saved++
		logger.Debug("frame saved", "path", path, "bytes", len(data))
	}

	ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	logger.Info("done", "saved", saved)
	return nil
}
