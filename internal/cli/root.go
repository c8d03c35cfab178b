package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rememberme",
	Short: "Personal relationship manager backend",
	Long:  "ReMember Me keeps track of the people in your life: who they are, when you last talked, and who needs a call.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rescueCmd)
	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(healthCmd)
}
