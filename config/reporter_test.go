package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func readReport(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("unable to open report: %v", err)
	}
	defer zr.Close()

	out := make(map[string]string)
	for _, f := range zr.File {
		r, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatal(err)
		}
		out[f.Name] = string(data)
	}
	return out
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	conf := ReporterConfig{Destination: filepath.Join(dir, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if r.Name() != conf.Destination {
		t.Errorf("Name() = %q, want %q", r.Name(), conf.Destination)
	}

	doc := filepath.Join(dir, "out.hwp")
	if err := os.WriteFile(doc, []byte("first"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.StoreCopy("result.hwp", doc); err != nil {
		t.Fatalf("StoreCopy() error = %v", err)
	}
	// copy is taken at the time of the call
	if err := os.WriteFile(doc, []byte("second"), 0644); err != nil {
		t.Fatal(err)
	}
	r.Store("live.hwp", doc)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			r.StoreData("profile.json", []byte(`{}`))
		})
	}
	wg.Wait()

	if err := r.StoreCopy("missing", filepath.Join(dir, "missing")); err == nil {
		t.Error("StoreCopy() of missing file expected error")
	}
	if err := r.StoreCopy("dir", dir); err == nil {
		t.Error("StoreCopy() of directory expected error")
	}

	r.mu.Lock()
	var scratch []string
	for _, e := range r.entries {
		if e.scratch {
			scratch = append(scratch, filepath.Dir(e.actual))
		}
	}
	r.mu.Unlock()

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	got := readReport(t, conf.Destination)
	if got["result.hwp"] != "first" || got["live.hwp"] != "second" {
		t.Errorf("report documents = %q / %q", got["result.hwp"], got["live.hwp"])
	}
	var profiles int
	for name := range got {
		if name == "profile.json" || strings.HasPrefix(name, "profile.json-") {
			profiles++
		}
	}
	if profiles != 8 {
		t.Errorf("report has %d profiles, want 8", profiles)
	}
	if _, ok := got["MANIFEST"]; !ok {
		t.Error("report has no MANIFEST")
	}

	for _, d := range scratch {
		if _, err := os.Stat(d); !os.IsNotExist(err) {
			t.Errorf("temporary copy %s was not removed", d)
		}
	}
	if _, err := os.Stat(doc); err != nil {
		t.Errorf("stored file should not be removed: %v", err)
	}
}

func TestPrepareManifest(t *testing.T) {
	names, buf := prepareManifest(map[string]entry{
		"b": {original: "b.hwp", actual: "/x/b.hwp"},
		"a": {data: []byte("x")},
	})
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Errorf("manifest has %d lines: %q", n, buf.String())
	}
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
	r.Store("x", "y")
	r.StoreData("x", nil)
	if err := r.StoreCopy("x", "y"); err != nil {
		t.Errorf("StoreCopy on nil report should not error, got: %v", err)
	}
	if r.Name() != "" {
		t.Error("Name() of nil report should be empty")
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
