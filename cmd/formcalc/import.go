package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formcalc/internal/loader"
	"github.com/goliatone/go-formcalc/internal/openapi/importer"
	"github.com/goliatone/go-formcalc/pkg/schema"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		operation string
		format    string
		list      bool
		save      bool
		name      string
		validate  bool
	)
	cmd := &cobra.Command{
		Use:   "import <openapi-file>",
		Short: "Build a form from an OpenAPI operation's request body",
		Long: `Build a form from an OpenAPI operation's request body.

Examples:
  formcalc import api.yaml --list
  formcalc import api.yaml --operation createInvoice --format yaml
  formcalc import api.yaml --operation createInvoice --save --name Invoice`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := schema.ParseSource(args[0])
			if err != nil {
				return err
			}
			doc, err := loader.New(loader.WithHTTP(true)).Load(ctx, src)
			if err != nil {
				return err
			}
			imp := importer.New(importer.WithValidation(validate))

			if list {
				ops, err := imp.Operations(ctx, doc.Raw())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, op := range ops {
					fmt.Fprintf(tw, "%s\t%s %s\t%s\n", op.ID, op.Method, op.Path, op.Summary)
				}
				return tw.Flush()
			}
			if strings.TrimSpace(operation) == "" {
				return errors.New("--operation is required (use --list to see them)")
			}

			form, err := imp.Form(ctx, doc.Raw(), operation)
			if err != nil {
				return err
			}
			form.Fields = loader.SanitizeFields(form.Fields)
			if name != "" {
				form.Name = name
			}

			if save {
				store, err := a.catalog()
				if err != nil {
					return err
				}
				if form, err = store.Add(ctx, form); err != nil {
					return err
				}
				a.logger.Info("form saved", "id", form.ID)
			}

			return writeForm(cmd.OutOrStdout(), form, format)
		},
	}
	cmd.Flags().StringVar(&operation, "operation", "", "operation id to import")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or yaml")
	cmd.Flags().BoolVar(&list, "list", false, "list the document's operations and exit")
	cmd.Flags().BoolVar(&save, "save", false, "store the imported form in the catalog")
	cmd.Flags().StringVar(&name, "name", "", "form name (defaults to the operation summary)")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate the OpenAPI document before importing")
	return cmd
}
