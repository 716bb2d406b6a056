package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/perf"
	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
	"github.com/encodeous/tint"
	slogmulti "github.com/samber/slog-multi"
)

// NewLogger writes to stderr and, if logPath is set, to a text log file. The returned closer releases the file.
func NewLogger(prefix, logPath string, level slog.Level) (*slog.Logger, io.Closer, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        level,
			AddSource:    false,
			CustomPrefix: prefix,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	var closer io.Closer = nopCloser{}
	if logPath != "" {
		err := os.MkdirAll(path.Dir(logPath), 0700)
		if err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
		closer = f
	}

	return slog.New(slogmulti.Fanout(handlers...)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Start runs a routing node attached to the network at addr until it is interrupted or the connection is lost.
func Start(addr string, cfg state.LocalCfg, logLevel slog.Level) error {
	logger, logFile, err := NewLogger("dvr", cfg.LogPath, logLevel)
	if err != nil {
		return err
	}
	defer logFile.Close()

	e := state.NewEnv(context.Background(), cfg, logger)
	defer e.Cancel(context.Canceled)

	if cfg.DebugAddr != "" {
		err = perf.ServeDebug(e.Context, cfg.DebugAddr, e.Log)
		if err != nil {
			return fmt.Errorf("failed to serve debug endpoints: %w", err)
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			e.Cancel(errors.New("received shutdown signal"))
		case <-e.Context.Done():
			return
		}
	}()

	t, err := DialNetwork(e, addr)
	if err != nil {
		return err
	}

	s := NewSession(e, t)
	defer func() {
		err := s.Stop()
		if err != nil {
			e.Log.Error("error occurred during Stop", "error", err)
		}
	}()

	err = s.Start()
	if err != nil {
		return err
	}
	e.Log.Info("node has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")

	return s.Run()
}
