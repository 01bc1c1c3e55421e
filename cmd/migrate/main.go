package main

import (
	"errors"
	"flag"

	"github.com/golang-migrate/migrate/v4"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/oms-inventory/internal/adapter/storage"
	"github.com/rl1809/oms-inventory/internal/config"
)

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	steps := flag.Int("steps", 0, "apply N migrations (negative rolls back); 0 applies or reverts all")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	logger := cfg.Logger()

	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	m, err := storage.NewMigrator(cfg.MySQLDSN)
	if err != nil {
		logger.WithError(err).Fatal("failed to create migrator")
	}
	defer m.Close()

	switch command {
	case "up":
		if *steps != 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps != 0 {
			err = m.Steps(-abs(*steps))
		} else {
			err = m.Down()
		}
	case "version":
	default:
		logger.Fatalf("unknown command %q (want up, down or version)", command)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.WithError(err).Fatalf("migrate %s failed", command)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.WithError(err).Fatal("failed to read schema version")
	}
	logger.WithFields(logrus.Fields{
		"command": command,
		"version": version,
		"dirty":   dirty,
	}).Info("schema ready")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
