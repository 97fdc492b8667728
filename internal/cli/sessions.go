package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/lobbynet/internal/api/response"
	"github.com/mcoot/lobbynet/internal/model"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"lobbies"},
		Short:   "Browse directory sessions",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List joinable public sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := model.JoinableFilter()
			if all {
				filter.AvailableSlotsGreaterThan = -1
			}

			sessions, err := client.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(response.SessionListFromModel(sessions))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include full sessions")

	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := client.Get(cmd.Context(), model.SessionID(args[0]))
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(response.SessionFromModel(session))
			return nil
		},
	}
}
