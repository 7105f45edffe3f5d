package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formcalc"
	"github.com/goliatone/go-formcalc/internal/loader"
	"github.com/goliatone/go-formcalc/pkg/catalog"
	filestore "github.com/goliatone/go-formcalc/pkg/catalog/file"
	"github.com/goliatone/go-formcalc/pkg/catalog/memory"
	redisstore "github.com/goliatone/go-formcalc/pkg/catalog/redis"
	"github.com/goliatone/go-formcalc/pkg/prompt"
	"github.com/goliatone/go-formcalc/pkg/schema"
)

// Config is read from the environment; flags on the root command override it.
type Config struct {
	LogLevel    string `env:"FORMCALC_LOG_LEVEL,default=warn"`
	Catalog     string `env:"FORMCALC_CATALOG,default=file"`
	CatalogPath string `env:"FORMCALC_CATALOG_PATH,default=formcalc-forms.json"`
	Redis       redisstore.Config
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg    Config
	logger *slog.Logger
	driver prompt.Driver
	store  catalog.Store
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.DiscardHandler),
	}
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

func newRootCmd(a *app) *cobra.Command {
	var (
		logLevel    string
		catalogKind string
		catalogPath string
	)

	root := &cobra.Command{
		Use:           "formcalc",
		Short:         "Evaluate forms with derived fields",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("catalog") {
				cfg.Catalog = catalogKind
			}
			if cmd.Flags().Changed("catalog-path") {
				cfg.CatalogPath = catalogPath
			}
			a.cfg = cfg

			logger, err := newLogger(a.stderr, cfg.LogLevel)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.store == nil {
				return nil
			}
			err := a.store.Close()
			a.store = nil
			return err
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (env FORMCALC_LOG_LEVEL)")
	flags.StringVar(&catalogKind, "catalog", "", "catalog backend: memory, file, redis (env FORMCALC_CATALOG)")
	flags.StringVar(&catalogPath, "catalog-path", "", "catalog file for the file backend (env FORMCALC_CATALOG_PATH)")

	root.AddCommand(
		newEvalCmd(a),
		newFillCmd(a),
		newWatchCmd(a),
		newImportCmd(a),
		newValidateCmd(a),
		newCatalogCmd(a),
	)
	return root
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if strings.TrimSpace(level) != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q", level)
		}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// catalog opens the configured backend once per command.
func (a *app) catalog() (catalog.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	var (
		store catalog.Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(a.cfg.Catalog)) {
	case "memory":
		store = memory.New()
	case "", "file":
		store, err = filestore.New(a.cfg.CatalogPath)
	case "redis":
		store, err = redisstore.New(a.cfg.Redis)
	default:
		err = fmt.Errorf("unknown catalog backend %q", a.cfg.Catalog)
	}
	if err != nil {
		return nil, err
	}
	a.logger.Debug("catalog opened", slog.String("backend", a.cfg.Catalog))
	a.store = store
	return store, nil
}

// engine builds an Engine whose loader may fetch HTTP sources.
func (a *app) engine(withCatalog bool) (*formcalc.Engine, error) {
	opts := []formcalc.Option{
		formcalc.WithLogger(a.logger),
		formcalc.WithLoader(loader.New(loader.WithHTTP(true))),
	}
	if withCatalog {
		store, err := a.catalog()
		if err != nil {
			return nil, err
		}
		opts = append(opts, formcalc.WithCatalog(store))
	}
	return formcalc.NewEngine(opts...), nil
}

// formRequest turns a positional argument or --form flag into an engine request.
func formRequest(arg, formID string) (formcalc.Request, error) {
	switch {
	case formID != "" && arg != "":
		return formcalc.Request{}, errors.New("pass either a file or --form, not both")
	case formID != "":
		return formcalc.Request{FormID: formID}, nil
	case arg == "":
		return formcalc.Request{}, errors.New("a form file or --form id is required")
	}
	src, err := schema.ParseSource(arg)
	if err != nil {
		return formcalc.Request{}, err
	}
	return formcalc.Request{Source: src}, nil
}

func (a *app) resolve(ctx context.Context, arg, formID string) (*formcalc.Engine, schema.Form, error) {
	engine, err := a.engine(formID != "")
	if err != nil {
		return nil, schema.Form{}, err
	}
	req, err := formRequest(arg, formID)
	if err != nil {
		return nil, schema.Form{}, err
	}
	form, err := engine.Resolve(ctx, req)
	if err != nil {
		return nil, schema.Form{}, err
	}
	return engine, form, nil
}

func optionalArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
