package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"clubflow/internal/lifecycle"
)

func newRejectCommand(app *App) *cobra.Command {
	var (
		as       string
		comments string
	)

	cmd := &cobra.Command{
		Use:   "reject <kind> <id>",
		Short: "Reject the current stage of a subject",
		Long: `Reject the current stage of a subject. Comments are required and are
shown to the club.

Example:
  clubflow reject proposals 12 --as "Student Council" --comments "Budget insufficient"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id := args[0], args[1]

			approver, err := app.approver(as)
			if err != nil {
				return app.fail(cmd, exitFailure, err)
			}

			route, err := app.routing().Route(kind)
			if err != nil {
				return app.fail(cmd, exitFailure, err)
			}

			res, err := app.executor().Reject(cmd.Context(), kind, id, approver, comments)
			if err != nil {
				return app.fail(cmd, exitFailure, fmt.Errorf("%s/%s: %w", kind, id, err))
			}

			if app.reportResults(route.Title, []*lifecycle.Result{res}) {
				return NewExitError(exitMismatch)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "Approver name recorded with the decision (default: config approver)")
	cmd.Flags().StringVarP(&comments, "comments", "m", "", "Reason for the rejection (required)")

	return cmd
}
