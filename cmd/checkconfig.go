package cmd

import (
	"fmt"

	"github.com/smazurov/rworker/internal/config"
	"github.com/spf13/cobra"
)

// CreateCheckConfigCmd creates the check-config command.
func CreateCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config [file]",
		Short: "Validate a configuration file",
		Long:  `Parses the given TOML configuration file (config.toml by default) and reports every invalid setting.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.toml"
			if len(args) == 1 {
				path = args[0]
			}

			file, err := config.LoadFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			transport := file.Channel.Transport
			if transport == "" {
				transport = "pipe"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: ok\n", path)
			fmt.Fprintf(out, "  prepared workers: %d\n", file.Pool.Prepared)
			fmt.Fprintf(out, "  use cluster:      %s\n", file.Pool.UseCluster)
			fmt.Fprintf(out, "  channel:          %s\n", transport)
			fmt.Fprintf(out, "  shutdown timeout: %s\n", file.Pool.Timeout())
			return nil
		},
	}
}
