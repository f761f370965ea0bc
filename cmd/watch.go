package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/clusterclient/internal/client"
	"github.com/giantswarm/clusterclient/internal/instrumentation"
	"github.com/giantswarm/clusterclient/internal/logging"
	"github.com/giantswarm/clusterclient/internal/watch"
)

// newWatchCmd creates the Cobra command for long-lived watch streams.
func newWatchCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch PATH...",
		Short: "Watch one or more resource paths for change events",
		Long: `Open a watch stream on each given resource path and print change
events to stdout as JSON lines, one event per line. Streams run until
interrupted; a stream that the server truncates mid-record ends the
command with an error so data loss is never silent.

With --metrics-addr, request and watch metrics are exposed in Prometheus
format on the given address (requires INSTRUMENTATION_ENABLED=true).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadClientConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
			if err != nil {
				return fmt.Errorf("setting up instrumentation: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = provider.Shutdown(shutdownCtx)
			}()

			logger := logging.DefaultLogger()
			c, err := client.New(cfg,
				client.WithLogger(logger),
				client.WithMetrics(provider.Metrics()),
				client.WithTracer(provider.Tracer()),
			)
			if err != nil {
				return err
			}

			group, ctx := errgroup.WithContext(ctx)

			if metricsAddr != "" {
				group.Go(func() error {
					return serveMetrics(ctx, metricsAddr, logger)
				})
			}

			printer := &eventPrinter{out: cmd.OutOrStdout()}
			for _, path := range args {
				group.Go(func() error {
					return watchPath(ctx, c, path, printer, logger)
				})
			}

			err = group.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	registerConnectionFlags(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address for the Prometheus metrics endpoint; empty disables it")

	return cmd
}

// watchPath runs one watch stream to completion. Decode failures on
// individual records are logged and skipped; a truncated or otherwise
// broken stream ends the command.
func watchPath(ctx context.Context, c *client.Client, path string, printer *eventPrinter, logger logging.Logger) error {
	stream, err := c.Watch(ctx, &client.Request{Path: path})
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	defer stream.Stop()

	for event := range stream.Events() {
		if event.Err != nil {
			var decodeErr *watch.DecodeError
			if errors.As(event.Err, &decodeErr) {
				logger.Warn("skipping undecodable watch record",
					logging.Path(path),
					logging.Err(event.Err),
				)
				continue
			}
			return fmt.Errorf("watch stream for %s failed: %w", path, event.Err)
		}

		if err := printer.print(path, event); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	logger.Info("watch stream ended", logging.Path(path))
	return nil
}

// eventPrinter serializes events from concurrent streams onto one
// output, a JSON line per event.
type eventPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *eventPrinter) print(path string, event watch.Event) error {
	line := map[string]any{
		"path": path,
		"type": event.Type,
	}
	if event.Object != nil {
		line["object"] = event.Object.Object
	}

	encoded, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.out.Write(append(encoded, '\n'))
	return err
}

// serveMetrics exposes the Prometheus endpoint until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, logger logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", "addr", addr)
	err := server.ListenAndServe()
	<-shutdownDone
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}
