package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	redisclient "github.com/vietddude/pacer/internal/infra/redis"
)

var resetScoresCmd = &cobra.Command{
	Use:   "reset-scores",
	Short: "Drop the persisted proxy health scores for the configured mode",
	Run:   runResetScores,
}

func init() {
	rootCmd.AddCommand(resetScoresCmd)
}

func runResetScores(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if cfg.Redis.URL == "" {
		fmt.Println("No redis configured, nothing to reset.")
		return
	}

	rdb, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rdb.Close()
	}()

	store := redisclient.NewScoreStore(rdb, cfg.Mode.Name)
	if err := store.Clear(context.Background()); err != nil {
		slog.Error("Failed to reset proxy scores", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset proxy scores for mode %q\n", cfg.Mode.Name)
}
