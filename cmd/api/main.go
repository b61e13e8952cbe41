package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/example/helpdesk/internal/config"
	"github.com/example/helpdesk/internal/db"
	"github.com/example/helpdesk/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "helpdesk",
	Short:         "Helpdesk ticketing API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(serveCmd(), migrateCmd(), ticketsCmd())
	rootCmd.RunE = serveCmd().RunE

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, the logger and the database shared by
// every command.
func bootstrap() (config.Config, *slog.Logger, *gorm.DB, error) {
	cfg := config.Load()
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	database, err := db.New(cfg.DatabaseURL, logger.WithComponent(log, "db"))
	if err != nil {
		return cfg, log, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, log, database, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, database, err := bootstrap()
			if err != nil {
				return err
			}
			if err := db.Migrate(database); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

func init() {
	if mode := os.Getenv("GIN_MODE"); mode == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
