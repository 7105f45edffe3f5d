package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formcalc/internal/loader"
	"github.com/goliatone/go-formcalc/pkg/schema"
	"github.com/goliatone/go-formcalc/pkg/validation"
)

type violation struct {
	file     string
	location string
	message  string
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check form definitions for structural problems",
		Long: `Check form definitions for structural problems: duplicate or malformed ids,
unknown field types, misplaced options, derivation cycles, unknown parents and
formulas that do not compile or reference undeclared fields.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := loader.New(loader.WithHTTP(true), loader.WithSanitize(false))

			var violations []violation
			for _, path := range args {
				src, err := schema.ParseSource(path)
				if err != nil {
					return err
				}
				form, err := l.LoadForm(cmd.Context(), src)
				if err != nil {
					return fmt.Errorf("load %s: %w", path, err)
				}
				for _, issue := range validation.ValidateFieldSet(form.Fields).Issues {
					violations = append(violations, violation{file: path, location: issue.Path, message: issue.Message})
				}
			}

			if len(violations) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) ok\n", len(args))
				return nil
			}
			sort.SliceStable(violations, func(i, j int) bool {
				if violations[i].file == violations[j].file {
					return violations[i].location < violations[j].location
				}
				return violations[i].file < violations[j].file
			})
			for _, v := range violations {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s -> %s\n", v.file, v.location, v.message)
			}
			a.logger.Debug("validation finished", "issues", len(violations))
			return errors.New("validation failed")
		},
	}
}
