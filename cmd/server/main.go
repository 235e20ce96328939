package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/share-links/internal/container"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	var (
		injector *do.Injector
		opts     *container.Options
	)

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		if err := options.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
			os.Exit(2)
		}

		opts = options
		injector = do.New()
		container.Register(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var server *http.Server

		hooks.OnStart(func() {
			logger.Info("configuration loaded",
				zap.String("store", options.Store),
				zap.String("base_url", options.BaseURL),
				zap.Int("token_length", options.TokenLength),
				zap.Duration("ttl", options.TTL()),
				zap.Int("max_generation_attempts", options.MaxGenerationAttempts),
				zap.Int("store_retries", options.StoreRetries),
				zap.Bool("rate_limit", options.RateLimit),
				zap.Strings("cors_origins", options.CorsOrigins()),
			)

			router := do.MustInvoke[*chi.Mux](injector)

			// Invoke API to trigger route registration
			if _, err := do.Invoke[huma.API](injector); err != nil {
				logger.Fatal("failed to build api", zap.Error(err))
			}

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("server starting", zap.Int("port", options.Port))

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
		})
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI document",
		Run: func(_ *cobra.Command, _ []string) {
			// Describing the API needs no backend connection.
			opts.Store = container.StoreMemory

			api := do.MustInvoke[huma.API](injector)

			out, err := api.OpenAPI().YAML()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}

			fmt.Println(string(out))
		},
	})

	cli.Run()
}
