package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mizunoki/ragna/internal/observability"
	"github.com/mizunoki/ragna/pkg/engine"
)

var watchDir string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a drop folder and ingest files as they appear",
	Long: `Run until interrupted, ingesting .md and .txt files dropped into the
watched directory. Rewritten files replace their document. When metrics
are enabled the Prometheus endpoint is served alongside, and a cron spec
in the summarize config schedules periodic memory compression.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchDir, "dir", "", "directory to watch (defaults to the configured drop folder)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	dir := watchDir
	if dir == "" {
		dir = rt.cfg.Watch.Dir
	}
	if dir == "" {
		return errors.New("no watch directory configured (set watch.dir or pass --dir)")
	}

	watcher, err := engine.NewDropWatcher(rt.engine, dir, rt.log.With().Str("component", "watcher").Logger())
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Stop()

	var metricsSrv *http.Server
	if rt.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		metricsSrv = &http.Server{Addr: rt.cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.log.Error().Err(err).Str("addr", metricsSrv.Addr).Msg("Metrics server stopped")
			}
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "metrics on http://%s/metrics\n", rt.cfg.Metrics.Addr)
	}

	if spec := rt.cfg.Summarize.CronSpec; spec != "" {
		if err := rt.summ.StartPeriodic(spec); err != nil {
			return fmt.Errorf("schedule summarizer: %w", err)
		}
		defer rt.summ.StopPeriodic()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s, ctrl-c to stop\n", dir)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}
