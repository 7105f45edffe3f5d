package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formcalc"
	"github.com/goliatone/go-formcalc/internal/loader"
	"github.com/goliatone/go-formcalc/pkg/report"
	"github.com/goliatone/go-formcalc/pkg/schema"
)

const watchDebounce = 100 * time.Millisecond

func newWatchCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-evaluate a form file every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := report.ParseFormat(output)
			if err != nil {
				return err
			}
			r, err := report.New()
			if err != nil {
				return err
			}
			return a.watch(cmd.Context(), args[0], cmd.OutOrStdout(), r, format)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "pretty", "output format: pretty, json, yaml")
	return cmd
}

// watch renders path once, then again after every write until ctx ends. The
// parent directory is watched so editors that replace the file are followed.
func (a *app) watch(ctx context.Context, path string, out io.Writer, r *report.Renderer, format report.Format) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	engine := formcalc.NewEngine(formcalc.WithLogger(a.logger), formcalc.WithLoader(loader.New()))
	render := func() {
		sess, err := engine.Start(ctx, formcalc.Request{Source: schema.SourceFromFile(abs)})
		if err != nil {
			a.logger.Warn("reload failed", slog.String("path", abs), slog.Any("error", err))
			fmt.Fprintf(out, "error: %v\n", err)
			return
		}
		if err := r.Write(out, sess.Fields(), sess.Snapshot(), format); err != nil {
			a.logger.Warn("render failed", slog.Any("error", err))
		}
	}
	render()

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			a.logger.Debug("form file changed", slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			render()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", slog.Any("error", err))
		}
	}
}
