// Package cmd wires the CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lantern",
	Short: "Lantern - retrieval-augmented chat over your documents",
	Long: `Lantern ingests documents, embeds them into PostgreSQL with pgvector,
and answers questions over them through a streaming chat API with tool
support.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
