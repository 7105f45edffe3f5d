package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formcalc/pkg/schema"
)

const yamlForm = `
name: "<b>Signup</b>"
fields:
  - id: email
    label: "Email <script>alert(1)</script>"
    type: text
    validations:
      - type: email
  - id: plan
    label: "R&D plan"
    type: select
    options: ["<i>basic</i>", "pro"]
    defaultValue: pro
`

func TestLoaderLoadsFromFS(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{"forms/signup.yaml": {Data: []byte(yamlForm)}}
	l := New(WithFS(files))

	form, err := l.LoadForm(context.Background(), schema.SourceFromFS("forms/signup.yaml"))
	if err != nil {
		t.Fatalf("LoadForm returned error: %v", err)
	}
	if form.Name != "Signup" {
		t.Fatalf("expected sanitised name, got %q", form.Name)
	}
	if got := form.Fields[0].Label; got != "Email" {
		t.Fatalf("expected script to be stripped, got %q", got)
	}
	if got := form.Fields[1].Label; got != "R&D plan" {
		t.Fatalf("expected entities to round trip, got %q", got)
	}
	if diff := cmp.Diff([]string{"basic", "pro"}, form.Fields[1].Options); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestLoaderWithoutSanitize(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{"f.yaml": {Data: []byte(yamlForm)}}
	form, err := New(WithFS(files), WithSanitize(false)).LoadForm(context.Background(), schema.SourceFromFS("f.yaml"))
	if err != nil {
		t.Fatalf("LoadForm returned error: %v", err)
	}
	if !strings.Contains(form.Fields[0].Label, "<script>") {
		t.Fatalf("expected raw label, got %q", form.Fields[0].Label)
	}
}

func TestLoaderLoadsFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fields.json")
	if err := os.WriteFile(path, []byte(`[{"id":"a","type":"number","defaultValue":2}]`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	form, err := New().LoadForm(context.Background(), schema.SourceFromFile(path))
	if err != nil {
		t.Fatalf("LoadForm returned error: %v", err)
	}
	if len(form.Fields) != 1 || form.Fields[0].Kind != schema.KindNumber {
		t.Fatalf("unexpected fields %#v", form.Fields)
	}
}

func TestLoaderHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/form.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"fields":[{"id":"x","type":"text"}]}`))
	}))
	defer srv.Close()

	src, err := schema.SourceFromURL(srv.URL + "/form.json")
	if err != nil {
		t.Fatalf("SourceFromURL returned error: %v", err)
	}

	if _, err := New().Load(context.Background(), src); err == nil || !strings.Contains(err.Error(), "http support disabled") {
		t.Fatalf("expected http to be disabled by default, got %v", err)
	}

	l := New(WithHTTPClient(srv.Client()))
	form, err := l.LoadForm(context.Background(), src)
	if err != nil {
		t.Fatalf("LoadForm returned error: %v", err)
	}
	if form.Fields[0].ID != "x" {
		t.Fatalf("unexpected fields %#v", form.Fields)
	}

	missing, _ := schema.SourceFromURL(srv.URL + "/missing")
	if _, err := l.Load(context.Background(), missing); err == nil || !strings.Contains(err.Error(), "unexpected status") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestLoaderRejectsOversizedAndCancelled(t *testing.T) {
	t.Parallel()

	files := fstest.MapFS{"big.json": {Data: []byte(strings.Repeat(" ", 64) + "[]")}}
	if _, err := New(WithFS(files), WithMaxBytes(16)).Load(context.Background(), schema.SourceFromFS("big.json")); err == nil {
		t.Fatalf("expected size limit error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(WithFS(files)).Load(ctx, schema.SourceFromFS("big.json")); err == nil {
		t.Fatalf("expected context error")
	}
}
