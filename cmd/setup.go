package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/songbridge/internal/services"
	"github.com/desertthunder/songbridge/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes a config file if missing, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	if err := config.Validate(); err != nil {
		return err
	}

	for _, id := range config.ProviderOrder() {
		if !isKnown(id) {
			r.logger.Warn("config names an unknown provider", "provider", id, "known", services.Known())
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	version, err := shared.SchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Database: %s (schema v%d)\n", config.Database.Path, version)
	r.writePlainln("Next steps:")
	r.writePlain("1. Enable providers and add credentials in %s\n", configPath)
	r.writePlain("2. Run 'songbridge search \"your song\"' to test\n")
	return nil
}

func isKnown(id string) bool {
	for _, k := range services.Known() {
		if k == id {
			return true
		}
	}
	return false
}
