package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clubflow/internal/approval"
	"clubflow/internal/backend"
	"clubflow/internal/lifecycle"
)

// errNoApprover is returned when neither --as nor the config names an approver.
var errNoApprover = errors.New("approver name required: pass --as or set CLUBFLOW_APPROVER")

func (a *App) approver(flag string) (string, error) {
	name := strings.TrimSpace(flag)
	if name == "" {
		name = strings.TrimSpace(a.Config.Approver)
	}
	if name == "" {
		return "", errNoApprover
	}
	return name, nil
}

func newApproveCommand(app *App) *cobra.Command {
	var (
		as     string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "approve <kind> <id> [id...]",
		Short: "Approve the current stage of one or more subjects",
		Long: `Approve the current stage of each subject in order.

Each approval is checked locally before anything is sent: subjects that are
already approved or rejected are refused. After the backend answers, the
subject is re-read and compared with the expected state. The batch stops at
the first failure.

Exit codes: 0 on success, 1 on failure, 2 if the backend settled on a
different state than expected.

Example:
  clubflow approve proposals 12 --as "Dr. Smith"
  clubflow approve bookings 7 8 9 --dry-run`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ids := args[0], args[1:]

			approver, err := app.approver(as)
			if err != nil {
				return app.fail(cmd, exitFailure, err)
			}

			route, err := app.routing().Route(kind)
			if err != nil {
				return app.fail(cmd, exitFailure, err)
			}

			exec := app.executor()
			if dryRun {
				for _, id := range ids {
					res, err := exec.Plan(cmd.Context(), kind, id, approver)
					if err != nil {
						return app.fail(cmd, exitFailure, fmt.Errorf("%s: %w", backend.Key(kind, id), err))
					}
					if err := app.renderState(fmt.Sprintf("%s #%s (dry run)", route.Title, id), res.Stages, res.Optimistic); err != nil {
						return app.fail(cmd, exitFailure, err)
					}
				}
				return nil
			}

			if len(ids) > 1 {
				exec.SetProgressCallback(app.Printer.BatchProgress)
				defer exec.SetProgressCallback(nil)
			}

			results, err := exec.ApproveAll(cmd.Context(), kind, ids, approver)
			mismatched := app.reportResults(route.Title, results)
			if err != nil {
				return app.fail(cmd, exitFailure, err)
			}
			if mismatched {
				return NewExitError(exitMismatch)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "Approver name recorded with the decision (default: config approver)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the resulting state without sending anything")

	return cmd
}

// reportResults renders each result and reports whether any mismatched.
func (a *App) reportResults(title string, results []*lifecycle.Result) bool {
	mismatched := false
	for _, res := range results {
		key := backend.Key(res.Kind, res.ID)
		if res.Mismatch {
			mismatched = true
			a.Printer.Mismatch(key, res.Optimistic, res.Authoritative)
		} else {
			a.Printer.Success(fmt.Sprintf("%s: %s", key, describe(res.Stages, res.Current())))
		}
		if err := a.renderState(fmt.Sprintf("%s #%s", title, res.ID), res.Stages, res.Current()); err != nil {
			a.Printer.Error(err.Error())
		}
	}
	return mismatched
}

func (a *App) renderState(title string, def approval.StageDefinition, s approval.State) error {
	views, err := approval.Project(def, s)
	if err != nil {
		return err
	}
	a.Printer.Stepper(title, views, a.Config.Output.Compact)
	return nil
}

// describe summarizes a state after a decision.
func describe(def approval.StageDefinition, s approval.State) string {
	switch s.Status {
	case approval.OutcomeApproved:
		return "fully approved"
	case approval.OutcomeRejected:
		return "rejected at " + def.Name(s.CurrentStage)
	default:
		return "now awaiting " + def.Name(s.CurrentStage)
	}
}
