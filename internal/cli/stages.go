package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStagesCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stages [kind]",
		Short: "Print the approval chain of each kind",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := app.routing()

			kinds := r.Kinds()
			if len(args) == 1 {
				kinds = args
			}

			for i, kind := range kinds {
				route, err := r.Route(kind)
				if err != nil {
					return app.fail(cmd, exitFailure, err)
				}
				if i > 0 {
					app.Printer.Text("")
				}
				app.Printer.StageList(fmt.Sprintf("%s (%s)", route.Title, route.Kind), route.Stages, route.Role)
			}
			return nil
		},
	}
}
