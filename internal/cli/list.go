package cli

import (
	"github.com/spf13/cobra"

	"clubflow/internal/approval"
	"clubflow/internal/backend"
	"clubflow/internal/output"
)

func newListCommand(app *App) *cobra.Command {
	var pendingOnly bool

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List proposals or bookings with their current stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]

			route, err := app.routing().Route(kind)
			if err != nil {
				return app.fail(cmd, exitFailure, err)
			}

			subjects, err := app.Backend.List(cmd.Context(), kind)
			if err != nil {
				return app.fail(cmd, exitFailure, err)
			}

			rows := make([]output.SubjectRow, 0, len(subjects))
			for _, s := range subjects {
				if pendingOnly && s.Status.Outcome() != approval.OutcomePending {
					continue
				}
				rows = append(rows, output.SubjectRow{
					ID:     s.IDString(),
					Title:  s.Title,
					Club:   s.ClubName,
					Status: s.Status.String(),
					Stage:  stageSummary(route.Stages, s, app),
				})
			}

			app.Printer.SubjectList(route.Title, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only list subjects still awaiting a decision")

	return cmd
}

// stageSummary describes where a subject stands in one short phrase.
func stageSummary(def approval.StageDefinition, s backend.Subject, app *App) string {
	state, err := s.State(def)
	if err != nil {
		app.Logger.Warn().Err(err).Int64("id", s.ID).Msg("skipping malformed subject state")
		return "invalid state"
	}

	switch state.Status {
	case approval.OutcomeApproved:
		return "all stages approved"
	case approval.OutcomeRejected:
		return "rejected at " + def.Name(state.CurrentStage)
	default:
		return "awaiting " + def.Name(state.CurrentStage)
	}
}
