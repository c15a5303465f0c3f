package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/wandero/matching/internal/adapter/postgres"
	"github.com/wandero/matching/internal/config"
)

// runAdmin dispatches admin subcommands (migrate, rollback, version).
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "migrate":
		return runAdminMigrate(args[1:])
	case "rollback":
		return runAdminRollback(args[1:])
	case "version":
		return runAdminVersion(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: matching admin <command> [options]

Commands:
  migrate    Apply pending database migrations
  rollback   Roll back migrations
  version    Print the current migration version
  help       Show this help message

Examples:
  matching admin migrate
  matching admin rollback --steps 1
  matching admin version
`)
}

func adminDSN() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Postgres.DSN, nil
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	dsn, err := adminDSN()
	if err != nil {
		return err
	}
	if err := postgres.RunMigrations(context.Background(), dsn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Migrations applied")
	return nil
}

func runAdminRollback(args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 1 {
		return fmt.Errorf("--steps must be >= 1")
	}

	dsn, err := adminDSN()
	if err != nil {
		return err
	}
	if err := postgres.RollbackMigrations(context.Background(), dsn, *steps); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Rolled back %d migration(s)\n", *steps)
	return nil
}

func runAdminVersion(args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	dsn, err := adminDSN()
	if err != nil {
		return err
	}
	v, err := postgres.MigrationVersion(context.Background(), dsn)
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	fmt.Printf("%d\n", v)
	return nil
}
