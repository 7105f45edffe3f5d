package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formcalc/internal/loader"
	"github.com/goliatone/go-formcalc/pkg/schema"
)

func newCatalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage saved forms",
	}
	cmd.AddCommand(
		newCatalogAddCmd(a),
		newCatalogListCmd(a),
		newCatalogShowCmd(a),
		newCatalogDeleteCmd(a),
	)
	return cmd
}

func newCatalogAddCmd(a *app) *cobra.Command {
	var (
		name string
		id   string
	)
	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Save a form definition to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := schema.ParseSource(args[0])
			if err != nil {
				return err
			}
			form, err := loader.New(loader.WithHTTP(true)).LoadForm(cmd.Context(), src)
			if err != nil {
				return err
			}
			if name != "" {
				form.Name = name
			}
			if id != "" {
				form.ID = id
			}
			store, err := a.catalog()
			if err != nil {
				return err
			}
			saved, err := store.Add(cmd.Context(), form)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), saved.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "form name (required unless the file has one)")
	cmd.Flags().StringVar(&id, "id", "", "explicit form id; replaces a stored form with the same id")
	return cmd
}

func newCatalogListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved forms, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.catalog()
			if err != nil {
				return err
			}
			forms, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tFIELDS\tCREATED")
			for _, f := range forms {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", f.ID, f.Name, len(f.Fields), f.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
}

func newCatalogShowCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.catalog()
			if err != nil {
				return err
			}
			form, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeForm(cmd.OutOrStdout(), form, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "yaml", "output format: json or yaml")
	return cmd
}

func newCatalogDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a saved form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.catalog()
			if err != nil {
				return err
			}
			return store.Delete(cmd.Context(), args[0])
		},
	}
}

func writeForm(w io.Writer, form schema.Form, format string) error {
	encoded, err := schema.Encode(form, schema.Format(strings.ToLower(strings.TrimSpace(format))))
	if err != nil {
		return err
	}
	if !bytes.HasSuffix(encoded, []byte("\n")) {
		encoded = append(encoded, '\n')
	}
	_, err = w.Write(encoded)
	return err
}
