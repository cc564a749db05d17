package main

import (
	"context"
	"fmt"
	"os"

	"mongodb-orm/internal/di"
	"mongodb-orm/internal/odm/config"
	"mongodb-orm/internal/shared/logger"

	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mongodb-orm",
	Short: "Serve and manage the library models stored in MongoDB",
	Long: `mongodb-orm maps Go structs to MongoDB collections with integer identities.
It exposes the library models over HTTP and manages their unique indexes.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			os.Setenv("LOG_LEVEL", "debug")
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// bootstrap loads configuration, builds the container and registers the library
// models. Models that fail to register are logged and stay unavailable.
func bootstrap(ctx context.Context) (*di.Container, error) {
	appLogger := logger.NewLogger()

	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}

	container := di.NewContainer(appLogger)
	if err := container.InitializeODM(settings); err != nil {
		return nil, err
	}

	results, err := container.InitializeLibrary(ctx, nil)
	if err != nil {
		container.Close()
		return nil, err
	}
	for _, r := range results {
		if !r.OK() {
			appLogger.WithFields(map[string]interface{}{
				"model": r.Model,
				"error": r.Err.Error(),
			}).Warn("Model unavailable")
		}
	}
	return container, nil
}
