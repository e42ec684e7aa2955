package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MalithGihan/torahindex-service/internal/export"
	"github.com/MalithGihan/torahindex-service/internal/server"
	"github.com/MalithGihan/torahindex-service/internal/store"
)

func newServeCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			log := newLogger(cfg, os.Stderr)

			svc, err := buildPipeline(cfg, log)
			if err != nil {
				return err
			}
			st, err := store.New(cfg.UploadDir, cfg.MaxUploadBytes)
			if err != nil {
				return err
			}
			api := server.New(svc, st, server.Options{
				MaxUploadBytes:        cfg.MaxUploadBytes,
				PreviewCount:          cfg.PreviewCount,
				RateLimitEvery:        cfg.RateLimitEvery,
				RateLimitBurst:        cfg.RateLimitBurst,
				MaxConcurrentRequests: cfg.MaxConcurrentRequests,
				Export:                export.Options{FontPath: cfg.ExportFontPath},
			}, log)

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           api.Routes(),
				ReadHeaderTimeout: cfg.ReadHeaderTimeout,
				WriteTimeout:      cfg.WriteTimeout,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("torahindex-service listening", "addr", srv.Addr, "model", cfg.Model, "provider", cfg.LLMProvider)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				log.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides PORT)")
	return cmd
}
