package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/config"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/logger"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/pricing"
	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/server"

	"github.com/leekchan/accounting"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func gracefulShutdown(ctx context.Context, apiServer *server.Server, logger *zap.Logger, done chan bool) {
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")
	done <- true
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting product editor API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	redisClient := server.NewRedisClient(ctx, cfg.Redis, log)

	srv, err := server.NewServer(cfg, log, redisClient)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan bool, 1)
	go gracefulShutdown(ctx, srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	<-done
	log.Info("Graceful shutdown complete")
	return nil
}

// quote prints the derived public price and discount for a cost
func quote(out io.Writer, rawCost string) error {
	cost := pricing.Coerce(rawCost)
	q := pricing.Derive(cost)

	money := accounting.DefaultAccounting("$", 2)
	fmt.Fprintf(out, "cost:     %s\n", money.FormatMoneyDecimal(cost))
	fmt.Fprintf(out, "price:    %s\n", money.FormatMoneyDecimal(q.Price))
	fmt.Fprintf(out, "discount: %s%%\n", q.Discount.StringFixed(2))
	return nil
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "product-editor",
		Usage: "Product entry editor API",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the editor HTTP API",
				Action: serve,
			},
			{
				Name:  "quote",
				Usage: "Show the public price and discount derived from a cost",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "cost",
						Usage:    "unit cost, e.g. 1000 or 999.90",
						Required: true,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return quote(c.Root().Writer, c.String("cost"))
				},
			},
		},
		DefaultCommand: "serve",
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
