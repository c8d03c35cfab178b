package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	dedupUser  string
	dedupApply bool
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Find and merge duplicate contacts",
	Long:  "List likely duplicate contacts for a user. With --apply, merge each group into its suggested keeper.",
	RunE:  runDedup,
}

func init() {
	dedupCmd.Flags().StringVarP(&dedupUser, "user", "u", "", "user id (required)")
	dedupCmd.Flags().BoolVar(&dedupApply, "apply", false, "merge the groups instead of listing them")
	dedupCmd.MarkFlagRequired("user")
}

func runDedup(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	eng := a.newEngine()

	groups, err := eng.FindDuplicates(dedupUser)
	if err != nil {
		return fmt.Errorf("find duplicates: %w", err)
	}
	if len(groups) == 0 {
		fmt.Println("No duplicates found.")
		return nil
	}

	for i, g := range groups {
		fmt.Printf("%d. keep %s (%s)\n", i+1, g.Keeper.FullName(), g.Keeper.ID)
		for _, d := range g.Duplicates {
			fmt.Printf("   - %s (%s) [%s %.2f]\n", d.Person.FullName(), d.Person.ID, d.Reason, d.Score)
		}
	}

	if !dedupApply {
		fmt.Println("\nRun again with --apply to merge.")
		return nil
	}

	removed, err := eng.Dedup(cmd.Context(), dedupUser)
	if err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	fmt.Printf("\nMerged %d duplicate contacts.\n", removed)
	return nil
}
