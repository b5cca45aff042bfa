package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "go-perform",
	Short: "Real-time MIDI performance scheduler",
	Long: `go-perform plays instruction batches (notes, patches, pattern loops)
on a MIDI output, scheduling patterns just in time so edits made while a
loop plays are heard on its next iteration.

Examples:
  go-perform run --port "IAC Driver" --monitor
  go-perform send batch.json
  go-perform ports
  go-perform config init`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default ~/.config/go-perform/config.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(configCmd)
}
