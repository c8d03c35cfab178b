package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rememberme/rememberme/internal/client"
	"github.com/rememberme/rememberme/internal/contacts"
	"github.com/rememberme/rememberme/internal/store"
)

var (
	healthUser   string
	healthServer bool
	healthURL    string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show relationship health for a user's contacts",
	Long:  "Show relationship health for a user's contacts from the local database, or with --server report on a running server.",
	RunE:  runHealth,
}

func init() {
	healthCmd.Flags().StringVarP(&healthUser, "user", "u", "", "user id")
	healthCmd.Flags().BoolVar(&healthServer, "server", false, "report on a running server instead")
	healthCmd.Flags().StringVar(&healthURL, "url", "", "server URL for --server (default $REMEMBER_URL)")
	healthCmd.MarkFlagsOneRequired("user", "server")
	healthCmd.MarkFlagsMutuallyExclusive("user", "server")
}

func runHealth(cmd *cobra.Command, args []string) error {
	if healthServer {
		return serverHealth(cmd.Context(), client.New(healthURL, ""), os.Stdout)
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	persons, err := a.db.ListPersons(healthUser, store.PersonFilter{})
	if err != nil {
		return fmt.Errorf("list persons: %w", err)
	}
	if len(persons) == 0 {
		fmt.Println("No contacts.")
		return nil
	}

	now := time.Now().UTC()
	type row struct {
		name   string
		health contacts.PersonHealth
	}
	rows := make([]row, 0, len(persons))
	for _, p := range persons {
		rows = append(rows, row{p.FullName(), contacts.HealthOf(p, now)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].health.DaysOverdue != rows[j].health.DaysOverdue {
			return rows[i].health.DaysOverdue > rows[j].health.DaysOverdue
		}
		return rows[i].name < rows[j].name
	})

	counts := contacts.HealthCounts(persons, now)
	for _, s := range contacts.HealthStates {
		fmt.Printf("%s: %d  ", s, counts[s])
	}
	fmt.Println()
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tDAYS\tTARGET\tOVERDUE")
	for _, r := range rows {
		days := fmt.Sprint(r.health.DaysSinceContact)
		if r.health.NeverContacted {
			days += " (never)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", r.name, r.health.State, days, r.health.TargetDays, r.health.DaysOverdue)
	}
	return w.Flush()
}

// serverHealth prints a running server's report. A degraded server is
// printed and then reported as an error.
func serverHealth(ctx context.Context, c *client.Client, out io.Writer) error {
	h, err := c.Health(ctx)
	if h == nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "status\t%s\n", h.Status)
	fmt.Fprintf(w, "version\t%s\n", h.Version)
	fmt.Fprintf(w, "uptime\t%s\n", (time.Duration(h.Uptime) * time.Second).String())
	fmt.Fprintf(w, "database\t%s\n", upDown(h.DB))
	ai := upDown(h.AI)
	if h.AIBreaker != "" {
		ai += " (breaker " + h.AIBreaker + ")"
	}
	fmt.Fprintf(w, "ai\t%s\n", ai)
	fmt.Fprintf(w, "calendar\t%s\n", upDown(h.Calendar))
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}

func upDown(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}
