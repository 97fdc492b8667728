package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/lobbynet/internal/api/response"
)

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check directory health",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Health(cmd.Context()); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(response.Health{Status: "ok"})
			return nil
		},
	}
}
