package main

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formcalc/pkg/prompt"
)

func newFillCmd(a *app) *cobra.Command {
	var (
		formID string
		revise bool
	)
	cmd := &cobra.Command{
		Use:   "fill [file]",
		Short: "Fill a form interactively and print the submitted values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, form, err := a.resolve(cmd.Context(), optionalArg(args), formID)
			if err != nil {
				return err
			}
			sess, err := engine.Open(form)
			if err != nil {
				return err
			}

			opts := []prompt.Option{prompt.WithLogger(a.logger), prompt.WithRevise(revise)}
			if a.driver != nil {
				opts = append(opts, prompt.WithDriver(a.driver))
			}
			snap, fillErr := prompt.New(opts...).Fill(cmd.Context(), sess)
			if fillErr != nil && !errors.Is(fillErr, prompt.ErrIncomplete) {
				return fillErr
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap.Values()); err != nil {
				return err
			}
			return fillErr
		},
	}
	cmd.Flags().StringVar(&formID, "form", "", "load the form from the catalog by id")
	cmd.Flags().BoolVar(&revise, "revise", true, "offer another round while the form has violations")
	return cmd
}
