// File: cmd/version.go
package cmd

import "github.com/spf13/cobra"

// Version is set at build time:
// go build -ldflags "-X github.com/xkilldash9x/axpilot/cmd.Version=1.0.0"
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the axpilot version",
		Args:  cobra.NoArgs,
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("axpilot " + Version)
		},
	}
}
