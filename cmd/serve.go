package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	odmhttp "mongodb-orm/internal/odm/adapter/http"

	"github.com/caarlos0/env/v6"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"localhost"`
	Port string `env:"SERVER_PORT" envDefault:"3000"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the library models over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		serverCfg := &ServerConfig{}
		if err := env.Parse(serverCfg); err != nil {
			return fmt.Errorf("failed to load server configuration: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		container, err := bootstrap(ctx)
		cancel()
		if err != nil {
			return err
		}
		defer container.Close()
		appLogger := container.Logger

		app := fiber.New(fiber.Config{
			AppName:      "mongodb-orm",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		})

		app.Use(recover.New())
		app.Use(cors.New(cors.Config{
			AllowOrigins: "*",
			AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
		}))
		app.Use(odmhttp.RequestIDMiddleware())
		app.Use(odmhttp.LoggingMiddleware(appLogger))

		container.GetODMModule().RegisterRoutes(app, container.GetCatalog().Resources())

		serverAddr := fmt.Sprintf("%s:%s", serverCfg.Host, serverCfg.Port)
		appLogger.Infof("Starting HTTP server on %s", serverAddr)

		serverShutdown := make(chan error, 1)
		go func() {
			serverShutdown <- app.Listen(serverAddr)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-serverShutdown:
			if err != nil {
				return fmt.Errorf("server failed to start: %w", err)
			}
		case sig := <-quit:
			appLogger.Infof("Received shutdown signal: %v", sig)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				appLogger.Errorf("Server forced to shutdown: %v", err)
			}
			appLogger.Info("HTTP server stopped")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
