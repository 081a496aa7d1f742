package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/veritaslabs/mnemo/internal/cli"
	"github.com/veritaslabs/mnemo/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mnemod",
		Short: "Mnemo daemon and CLI",
		Long:  "Mnemo daemon for running the knowledge lifecycle API server, duplicate detection and archival",
	}

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.ArchiveCmd())
	rootCmd.AddCommand(admin.DedupCmd())
	rootCmd.AddCommand(admin.StatsCmd())

	cli.AddHelpJSONFlag(rootCmd)
	cli.CheckHelpJSON(rootCmd)

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
