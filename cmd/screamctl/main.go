package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/screamboard/screamboard/internal/config"
	"github.com/screamboard/screamboard/internal/db"
	"github.com/screamboard/screamboard/internal/identity"
	"github.com/screamboard/screamboard/internal/logger"
	"github.com/screamboard/screamboard/internal/scream"
)

var output = "text" // "text" or "json"

var rootCmd = &cobra.Command{
	Use:   "screamctl",
	Short: "Administer a screamboard database",
	Long: `screamctl works directly against the database configured for the server
(DATABASE_URL, config.yaml). Use it to archive weeks, manage admins and inspect
statistics without going through the HTTP API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(promoteAdminCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
}

// env is what every command needs.
type env struct {
	cfg    *config.Config
	db     *gorm.DB
	board  *scream.Service
	hasher *identity.Hasher
}

func openEnv() (*env, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// Commands print their own output; only warnings go to the log.
	if err := logger.Initialize(logger.Options{Level: "warn", Stderr: true}); err != nil {
		return nil, err
	}

	database, err := db.Init(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, err
	}

	return &env{
		cfg:    cfg,
		db:     database,
		board:  scream.NewService(database, scream.Options{ArchiveLimit: cfg.Archive.Limit}),
		hasher: identity.NewHasher(cfg.Identity.Salt),
	}, nil
}

func (e *env) close() {
	_ = db.Close(e.db)
	_ = logger.Close()
}

// printResult writes v as indented JSON when --output=json, otherwise calls text.
func printResult(v interface{}, text func()) error {
	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
