package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/avelora/ticket-office/internal/config"
)

const versionTimeFormat = "20060102150405"

func main() {
	rootCmd := &cobra.Command{Use: "migrate"}
	rootCmd.AddCommand(
		createCommand(),
		upCommand(),
		downCommand(),
	)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "create an empty pair of up/down SQL migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := time.Now().Format(versionTimeFormat)
			up := fmt.Sprintf("migrations/%s_%s.up.sql", version, args[0])
			down := fmt.Sprintf("migrations/%s_%s.down.sql", version, args[0])
			if err := os.WriteFile(up, []byte{}, 0644); err != nil {
				return err
			}
			if err := os.WriteFile(down, []byte{}, 0644); err != nil {
				return err
			}
			fmt.Println("created", up)
			fmt.Println("created", down)
			return nil
		},
	}
}

func upCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil {
				if err == migrate.ErrNoChange {
					fmt.Println("no change")
					return nil
				}
				return err
			}
			fmt.Println("migrated up")
			return nil
		},
	}
}

func downCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := open()
			if err != nil {
				return err
			}
			if err := m.Steps(-1); err != nil {
				return err
			}
			fmt.Println("rolled back one step")
			return nil
		},
	}
}

func open() (*migrate.Migrate, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	auth := cfg.DBUser
	if cfg.DBPass != "" {
		auth = fmt.Sprintf("%s:%s", cfg.DBUser, cfg.DBPass)
	}
	dsn := fmt.Sprintf("mysql://%s@tcp(%s:%s)/%s", auth, cfg.DBHost, cfg.DBPort, cfg.DBName)
	return migrate.New("file://migrations", dsn)
}
