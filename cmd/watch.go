package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/invoice-audit/internal/pipeline"
	"github.com/sells-group/invoice-audit/internal/watcher"
)

var watchFTP bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously audit incoming invoices",
	Long:  "Polls the incoming directory on an interval and audits every eligible document. With --ftp the remote inbox is synced down before each scan.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if watchFTP {
			cfg.Watch.FTP.Enabled = true
		}
		if err := cfg.Validate("watch"); err != nil {
			return err
		}

		env, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var inbox *watcher.InboxSync
		if cfg.Watch.FTP.Enabled {
			inbox = watcher.NewInboxSync(cfg.Watch.FTP)
		}

		interval := time.Duration(cfg.Watch.IntervalSecs) * time.Second
		limiter := rate.NewLimiter(rate.Every(interval), 1)

		zap.L().Info("watching",
			zap.String("dir", cfg.Paths.IncomingDir),
			zap.Duration("interval", interval),
			zap.Bool("ftp", inbox != nil),
		)

		for {
			if err := limiter.Wait(ctx); err != nil {
				// Context cancelled: clean shutdown.
				return nil
			}
			if err := watchOnce(ctx, env, inbox); err != nil {
				zap.L().Error("watch cycle failed", zap.Error(err))
			}
		}
	},
}

// watchOnce runs one scan cycle: optional FTP sync, then every eligible
// file through the pipeline, at most watch.max_concurrent at a time. The
// cycle completes before the next scan starts so a file in flight is never
// picked up twice.
func watchOnce(ctx context.Context, env *env, inbox *watcher.InboxSync) error {
	if inbox != nil {
		fetched, err := inbox.Sync(ctx, cfg.Paths.IncomingDir)
		if err != nil {
			zap.L().Warn("ftp sync failed", zap.Error(err))
		} else if len(fetched) > 0 {
			zap.L().Info("ftp sync", zap.Int("fetched", len(fetched)))
		}
	}

	files, err := env.Watcher.List()
	if err != nil {
		return eris.Wrap(err, "scan incoming")
	}
	if len(files) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Watch.MaxConcurrent)

	for _, name := range files {
		g.Go(func() error {
			state, err := env.Pipeline.Run(gctx, pipeline.Request{FileName: name})
			if err != nil {
				zap.L().Error("audit failed", zap.String("file", name), zap.Error(err))
				return nil // one bad file must not stop the batch
			}
			env.finishRun(gctx, state)
			return nil
		})
	}
	return g.Wait()
}

func init() {
	watchCmd.Flags().BoolVar(&watchFTP, "ftp", false, "sync the remote FTP inbox before each scan")
	rootCmd.AddCommand(watchCmd)
}
