package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"clubflow/internal/approval"
	"clubflow/internal/backend"
	"clubflow/internal/snapshot"
)

func newShowCommand(app *App) *cobra.Command {
	var (
		snapshotPath string
		savePath     string
		history      bool
		compact      bool
	)

	cmd := &cobra.Command{
		Use:   "show <kind> <id>",
		Short: "Show where a proposal or booking stands",
		Long: `Render the approval stepper of one subject.

By default the subject is fetched from the backend. With --snapshot the
subject is read from a snapshot file instead, which works offline.
With --save the fetched subject is stored in a snapshot file.

Example:
  clubflow show proposals 12 --history
  clubflow show bookings 7 --save snapshots.yaml`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, id := args[0], args[1]

			route, err := app.routing().Route(kind)
			if err != nil {
				return app.fail(cmd, exitFailure, err)
			}

			var subject *backend.Subject
			if snapshotPath != "" {
				path := snapshot.ResolvePath(snapshotPath, app.Config.SnapshotPath)
				subject, err = snapshot.NewReader(path).Get(kind, id)
			} else {
				subject, err = app.Backend.Get(cmd.Context(), kind, id)
			}
			if err != nil {
				return app.fail(cmd, exitFailure, err)
			}

			if subject.DisplayMismatch() {
				app.Logger.Warn().
					Str("subject", backend.Key(kind, id)).
					Str("status_display", subject.StatusDisplay).
					Msg("status_display disagrees with status code, using status code")
			}

			state, err := subject.State(route.Stages)
			if err != nil {
				return app.fail(cmd, exitFailure, err)
			}
			views, err := approval.Project(route.Stages, state)
			if err != nil {
				return app.fail(cmd, exitFailure, err)
			}

			title := fmt.Sprintf("%s #%s", route.Title, id)
			if subject.Title != "" {
				title += " · " + subject.Title
			}
			if subject.ClubName != "" {
				title += " (" + subject.ClubName + ")"
			}

			app.Printer.Stepper(title, views, compact || app.Config.Output.Compact)
			app.Printer.Progress(approval.Progress(views))
			if history || app.Config.Output.ShowHistory {
				app.Printer.History(route.Stages, state.History)
			}

			if savePath != "" {
				path := snapshot.ResolvePath(savePath, app.Config.SnapshotPath)
				if err := snapshot.NewWriter(path).Put(kind, id, *subject); err != nil {
					return app.fail(cmd, exitFailure, err)
				}
				app.Printer.Success("saved " + backend.Key(kind, id) + " to " + path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Read the subject from a snapshot file instead of the backend")
	cmd.Flags().StringVar(&savePath, "save", "", "Store the fetched subject in a snapshot file")
	cmd.Flags().BoolVar(&history, "history", false, "Show the decisions recorded so far")
	cmd.Flags().BoolVar(&compact, "compact", false, "Render the stepper on one line")

	return cmd
}
