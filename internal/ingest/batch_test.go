package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/joseph-ayodele/form-extractor/constants"
	"github.com/joseph-ayodele/form-extractor/internal/pipeline"
	"github.com/joseph-ayodele/form-extractor/internal/schema"
)

type fakeProcessor func(data []byte, filename string) pipeline.Result

func (f fakeProcessor) Process(_ context.Context, data []byte, filename string) pipeline.Result {
	return f(data, filename)
}

func TestBatch_Run(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(in, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	paths := []string{write("a.png", "ok"), write("b.jpg", "bad")}

	proc := fakeProcessor(func(data []byte, filename string) pipeline.Result {
		if string(data) == "bad" {
			return pipeline.Result{Status: constants.ResultError, Error: "Invalid image file"}
		}
		doc := &schema.Document{
			DocumentType: "Invoice",
			Sections: []schema.Section{{SectionName: "General Information", Fields: []schema.Field{
				{FieldName: "Total", FieldValue: "10"},
			}}},
		}
		return pipeline.Result{Status: constants.ResultSuccess, Filename: filename, Data: doc, ConfidenceScore: 0.9}
	})

	b := NewBatch(proc, in, out, 2, nil)
	results, stats := b.Run(context.Background(), paths)

	if stats.Matched != 2 || stats.Succeeded != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if results[0].Err != "" || results[1].Err == "" {
		t.Errorf("results = %+v", results)
	}

	for _, name := range []string{"a.png.json", "b.jpg.json"} {
		body, err := os.ReadFile(filepath.Join(out, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		var m map[string]any
		if err := json.Unmarshal(body, &m); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if _, ok := m["status"]; !ok {
			t.Errorf("%s has no status", name)
		}
	}

	rows := b.Rows()
	sort.Slice(rows, func(i, j int) bool { return rows[i].Filename < rows[j].Filename })
	if len(rows) != 2 || rows[0].DocumentType != "Invoice" || rows[0].FieldCount != 1 || rows[1].Error == "" {
		t.Errorf("rows = %+v", rows)
	}
}

func TestBatch_CancelledContextSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	b := NewBatch(fakeProcessor(func([]byte, string) pipeline.Result {
		called = true
		return pipeline.Result{}
	}), "", "", 1, nil)

	_, stats := b.Run(ctx, []string{"x.png"})
	if called || stats.Skipped != 1 {
		t.Errorf("called=%v stats=%+v", called, stats)
	}
}

func TestBatch_ResultNamesDoNotCollide(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	var paths []string
	for _, rel := range []string{"scan.png", "scan.jpg", filepath.Join("sub", "scan.png")} {
		p := filepath.Join(in, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(rel), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	b := NewBatch(fakeProcessor(func(data []byte, filename string) pipeline.Result {
		return pipeline.Result{Status: constants.ResultError, Filename: filename, Error: string(data)}
	}), in, out, 3, nil)
	b.Run(context.Background(), paths)

	want := map[string]string{
		"scan.png.json":      "scan.png",
		"scan.jpg.json":      "scan.jpg",
		"sub__scan.png.json": filepath.Join("sub", "scan.png"),
	}
	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(want) {
		t.Fatalf("wrote %d files, want %d", len(entries), len(want))
	}
	for name, src := range want {
		body, err := os.ReadFile(filepath.Join(out, name))
		if err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
		var m map[string]any
		if err := json.Unmarshal(body, &m); err != nil || m["error"] != src {
			t.Errorf("%s = %s (%v), want result of %s", name, body, err, src)
		}
	}
}

func TestResultName(t *testing.T) {
	tests := []struct {
		root, path, want string
	}{
		{"/in", "/in/a.png", "a.png.json"},
		{"/in", "/in/x/y/a.jpg", "x__y__a.jpg.json"},
		{"/in", "/elsewhere/a.png", "a.png.json"},
		{"", "/in/x/a.png", "a.png.json"},
	}
	for _, tt := range tests {
		if got := ResultName(filepath.FromSlash(tt.root), filepath.FromSlash(tt.path)); got != tt.want {
			t.Errorf("ResultName(%q, %q) = %q, want %q", tt.root, tt.path, got, tt.want)
		}
	}
}
