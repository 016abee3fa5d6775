// Command promote grants or revokes the admin flag on a profile.
//
// There is no HTTP route for this. An operator runs it
// against the same database the server uses:
//
//	go run ./cmd/promote -email admin@example.com
//	go run ./cmd/promote -email admin@example.com -revoke
//
// DB_PATH (and a .env file, if present) select the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	sqliteRepo "github.com/sakif/community-hub/internal/repository/sqlite"
	"github.com/sakif/community-hub/internal/service"
)

func main() {
	email := flag.String("email", "", "email of the account to change (required)")
	revoke := flag.Bool("revoke", false, "remove the admin flag instead of granting it")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*email, !*revoke, logger); err != nil {
		logger.Error("promote failed", slog.String("email", *email), slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run only needs DB_PATH, so it reads that one key instead of config.Load,
// which would also insist on JWT_SECRET.
func run(email string, isAdmin bool, logger *slog.Logger) error {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("DB_PATH", "data/community.db")

	db, err := sqliteRepo.New(v.GetString("DB_PATH"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	profile, err := service.NewModerationService(db.Profiles(), logger).SetAdmin(ctx, email, isAdmin)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s) isAdmin=%t\n", profile.Email, profile.ID, profile.IsAdmin)
	return nil
}
