package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe all configured proxies once and show their health",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	session, cleanup, err := newSession(cfg)
	if err != nil {
		slog.Error("Failed to initialize session", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx := context.Background()
	result := session.CheckProxies(ctx)

	snaps := session.PoolSnapshots()
	if len(snaps) == 0 {
		fmt.Println("No proxies configured, direct egress only.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PROXY\tSCORE\tFAILURES\tSTATE\tLATENCY")
	for _, s := range snaps {
		state := "active"
		if !s.Active {
			state = "inactive"
		}
		fmt.Fprintf(w, "%s\t%.2f\t%d\t%s\t%v\n",
			s.Endpoint, s.Score, s.ConsecutiveFailures, state, s.MeanLatency)
	}
	w.Flush()

	fmt.Printf("\n%d total, %d alive, %d dead, %d recovered\n",
		result.Total, result.Alive, result.Dead, result.Recovered)
}
