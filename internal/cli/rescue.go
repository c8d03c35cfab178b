package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rememberme/rememberme/internal/client"
	"github.com/rememberme/rememberme/internal/config"
	"github.com/rememberme/rememberme/internal/engine"
)

var (
	rescueRemote bool
	rescueURL    string
)

var rescueCmd = &cobra.Command{
	Use:   "rescue",
	Short: "Run the weekly rescue job",
	Long:  "Suggest a check-in message for each user's most overdue contacts. Runs against the local database, or with --remote asks a running server to do it.",
	RunE:  runRescue,
}

func init() {
	rescueCmd.Flags().BoolVar(&rescueRemote, "remote", false, "trigger the job on a running server")
	rescueCmd.Flags().StringVar(&rescueURL, "url", "", "server URL for --remote (default $REMEMBER_URL)")
}

func runRescue(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var (
		report *engine.RescueReport
		err    error
	)
	if rescueRemote {
		report, err = remoteRescue(ctx)
	} else {
		report, err = localRescue(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Printf("users: %d  suggested: %d  skipped: %d  failed: %d\n",
		report.Users, report.Suggested, report.Skipped, report.Failed)
	return nil
}

func remoteRescue(ctx context.Context) (*engine.RescueReport, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	c := client.New(rescueURL, cfg.Auth.CronSecret)
	if !c.Healthy(ctx) {
		return nil, fmt.Errorf("server is not healthy; check it with: rememberme health --server")
	}
	return c.TriggerRescue(ctx)
}

func localRescue(ctx context.Context) (*engine.RescueReport, error) {
	a, err := openApp()
	if err != nil {
		return nil, err
	}
	defer a.Close()

	eng := a.newEngine()
	if eng.LLM == nil {
		return nil, fmt.Errorf("rescue needs an AI provider; check the llm config")
	}
	report, err := eng.WeeklyRescue(ctx)
	if err != nil {
		return nil, fmt.Errorf("weekly rescue: %w", err)
	}
	return &report, nil
}
