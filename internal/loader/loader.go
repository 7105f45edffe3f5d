// Package loader reads form definitions from files, fs.FS entries or HTTP
// endpoints and decodes them into sanitised field sets.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/goliatone/go-formcalc/pkg/schema"
)

const defaultTimeout = 10 * time.Second

// Loader delegates to file, fs.FS, or HTTP strategies based on the source
// kind. HTTP is disabled unless a client or WithHTTP is supplied.
type Loader struct {
	fs        fs.FS
	http      *http.Client
	allowHTTP bool
	timeout   time.Duration
	sanitize  bool
	maxBytes  int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithFS sets the filesystem used for SourceKindFS sources.
func WithFS(files fs.FS) Option {
	return func(l *Loader) { l.fs = files }
}

// WithHTTPClient enables URL sources using client. A zero client timeout is
// replaced with the loader timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		if client == nil {
			return
		}
		clone := *client
		l.http = &clone
	}
}

// WithHTTP enables URL sources with a default client.
func WithHTTP(enabled bool) Option {
	return func(l *Loader) { l.allowHTTP = enabled }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Loader) {
		if timeout > 0 {
			l.timeout = timeout
		}
	}
}

// WithSanitize toggles stripping markup from labels and options. Enabled by
// default.
func WithSanitize(enabled bool) Option {
	return func(l *Loader) { l.sanitize = enabled }
}

// WithMaxBytes caps the payload size read from any source.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// New constructs a Loader.
func New(options ...Option) *Loader {
	l := &Loader{
		timeout:  defaultTimeout,
		sanitize: true,
		maxBytes: 4 << 20,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(l)
	}

	switch {
	case l.http != nil:
		if l.http.Timeout == 0 {
			l.http.Timeout = l.timeout
		}
		l.allowHTTP = true
	case l.allowHTTP:
		l.http = &http.Client{Timeout: l.timeout}
	}
	return l
}

// Load fetches the raw document behind src.
func (l *Loader) Load(ctx context.Context, src schema.Source) (schema.Document, error) {
	if src == nil {
		return schema.Document{}, errors.New("loader: source is nil")
	}

	var (
		data []byte
		err  error
	)

	switch src.Kind() {
	case schema.SourceKindFile:
		data, err = loadFile(ctx, src.Location(), l.maxBytes)
	case schema.SourceKindFS:
		data, err = loadFromFS(ctx, l.fs, src.Location(), l.maxBytes)
	case schema.SourceKindURL:
		if !l.allowHTTP {
			return schema.Document{}, errors.New("loader: http support disabled")
		}
		data, err = loadHTTP(ctx, l.http, src.Location(), l.timeout, l.maxBytes)
	default:
		err = fmt.Errorf("loader: unsupported source kind %q", src.Kind())
	}
	if err != nil {
		return schema.Document{}, err
	}

	return schema.NewDocument(src, data)
}

// LoadForm loads and decodes src. Labels and options are sanitised unless
// disabled.
func (l *Loader) LoadForm(ctx context.Context, src schema.Source) (schema.Form, error) {
	doc, err := l.Load(ctx, src)
	if err != nil {
		return schema.Form{}, err
	}
	form, err := doc.Form()
	if err != nil {
		return schema.Form{}, err
	}
	if l.sanitize {
		form.Name = sanitizeText(form.Name)
		form.Fields = SanitizeFields(form.Fields)
	}
	return form, nil
}
