package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/marchfell/caravan/server"
	"github.com/marchfell/caravan/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve decisions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			eng, closer, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			var archive server.Archiver
			var batch *store.RotatingWriter
			if cfg.Archive.Dir != "" {
				batch, err = store.NewRotatingWriter(cfg.Archive.Dir, cfg.Archive.FlushEvery)
				if err != nil {
					return err
				}
				archive = batch
				log.Info().Str("dir", cfg.Archive.Dir).Msg("decision archive enabled")
			}

			srv := server.New(eng, archive)
			httpSrv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Server.Addr).Msg("decision server listening")
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			}

			if batch != nil {
				path, rows, err := batch.Close()
				if err != nil {
					log.Warn().Err(err).Msg("finalize archive batch")
				} else if rows > 0 {
					log.Info().Str("path", path).Int("rows", rows).Msg("archive batch written")
				}
			}
			return nil
		},
	}
}
