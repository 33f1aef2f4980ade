package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/KAsare1/Lexconsult-server/cmd/api"
	"github.com/KAsare1/Lexconsult-server/cmd/config"
	"github.com/KAsare1/Lexconsult-server/cmd/models"
	"github.com/KAsare1/Lexconsult-server/db"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cfg)
		},
	}

	root := &cobra.Command{
		Use:          "lexconsult",
		Short:        "Legal consultation marketplace API",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	root.AddCommand(
		serve,
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(cfg, runMigrations)
			},
		},
		&cobra.Command{
			Use:   "clear-db",
			Short: "Drop every table after confirmation",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withDatabase(cfg, runDatabaseClear)
			},
		},
		createAdminCommand(cfg),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func withDatabase(cfg *config.Config, fn func(*gorm.DB) error) error {
	DB, err := db.NewPSQLStorage(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database initialization error: %w", err)
	}
	defer db.Close(DB)
	log.Println("Connected to the database")
	return fn(DB)
}

func runMigrations(DB *gorm.DB) error {
	if err := db.Migrate(DB); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

func runDatabaseClear(DB *gorm.DB) error {
	fmt.Print("Are you sure you want to clear the database? (yes/no): ")
	confirmation, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if strings.TrimSpace(confirmation) != "yes" {
		log.Println("Database clearing cancelled.")
		return nil
	}

	log.Println("Dropping tables...")
	if err := db.Drop(DB); err != nil {
		return fmt.Errorf("error clearing database: %w", err)
	}
	log.Println("Database cleared successfully")
	return nil
}

func createAdminCommand(cfg *config.Config) *cobra.Command {
	var name, handle, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(password) < 6 {
				return fmt.Errorf("password must be at least 6 characters")
			}
			return withDatabase(cfg, func(DB *gorm.DB) error {
				hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
				if err != nil {
					return err
				}
				admin := models.User{Name: name, Handle: handle, PasswordHash: string(hash), Role: models.RoleAdmin}
				if err := DB.Create(&admin).Error; err != nil {
					return fmt.Errorf("error creating admin: %w", err)
				}
				log.Printf("Admin %q created with id %d", handle, admin.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&handle, "handle", "", "login handle")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	_ = cmd.MarkFlagRequired("handle")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func startServer(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return withDatabase(cfg, func(DB *gorm.DB) error {
		// Graceful shutdown setup
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return api.NewApiServer(cfg, DB).Run(ctx)
	})
}
