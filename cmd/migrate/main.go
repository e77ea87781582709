// Command migrate applies the MoneyMinder schema migrations for the
// configured DB_DRIVER.
//
//	migrate up              apply everything pending
//	migrate down [N]        roll back N steps (default 1)
//	migrate goto V          migrate up or down to version V
//	migrate force V         mark V as applied and clear the dirty flag
//	migrate version         print the current version
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"moneyminder/internal/config"
	"moneyminder/internal/database"
	"moneyminder/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type command func(m *migrate.Migrate, args []string) error

var commands = map[string]command{
	"up":      up,
	"down":    down,
	"goto":    gotoVersion,
	"force":   force,
	"version": version,
}

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalw("migrate failed", "error", err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: migrate <up|down|goto|force|version> [N]")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dbConfig := database.NewConfig(cfg)
	dbURL, err := dbConfig.MigrationURL()
	if err != nil {
		return err
	}
	m, err := migrate.New(dbConfig.MigrationSource(database.MigrationsDir), dbURL)
	if err != nil {
		return fmt.Errorf("open %s migrations: %w", dbConfig.Driver, err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Get().Warnw("migrate close", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	return cmd(m, args[1:])
}

func up(m *migrate.Migrate, _ []string) error {
	if err := ignoreNoChange(m.Up()); err != nil {
		return fmt.Errorf("up: %w", err)
	}
	return version(m, nil)
}

func down(m *migrate.Migrate, args []string) error {
	steps := 1
	if len(args) > 0 {
		n, err := positiveArg(args[0])
		if err != nil {
			return err
		}
		steps = n
	}
	if err := ignoreNoChange(m.Steps(-steps)); err != nil {
		return fmt.Errorf("down %d: %w", steps, err)
	}
	return version(m, nil)
}

func gotoVersion(m *migrate.Migrate, args []string) error {
	if len(args) == 0 {
		return errors.New("goto needs a version")
	}
	v, err := positiveArg(args[0])
	if err != nil {
		return err
	}
	if err := ignoreNoChange(m.Migrate(uint(v))); err != nil {
		return fmt.Errorf("goto %d: %w", v, err)
	}
	return version(m, nil)
}

func force(m *migrate.Migrate, args []string) error {
	if len(args) == 0 {
		return errors.New("force needs a version")
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q", args[0])
	}
	if err := m.Force(v); err != nil {
		return fmt.Errorf("force %d: %w", v, err)
	}
	return version(m, nil)
}

func version(m *migrate.Migrate, _ []string) error {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Get().Infow("schema is empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	logger.Get().Infow("schema version", "version", v, "dirty", dirty)
	return nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

func positiveArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("expected a positive number, got %q", s)
	}
	return n, nil
}
