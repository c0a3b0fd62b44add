package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "blocksweep",
		Short: "Keyword-driven Bluesky blocklist curation",
		Long: `blocksweep searches Bluesky for configured keywords, classifies each post's
stance toward the keyword with a local vision/language model, and adds the
authors of supportive posts to a moderation list.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to YAML configuration file")

	root.AddCommand(
		newServeCmd(&configPath),
		newScanCmd(&configPath),
		newUnblockAllCmd(&configPath),
	)
	return root
}
