package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const listBody = `<?xml version="1.0" encoding="UTF-8"?>
<top500:list xmlns:top500="http://www.top500.org/xml/top500/1.0">
  <top500:site><top500:rank>1</top500:rank><top500:r-max>1000</top500:r-max></top500:site>
</top500:list>
`

func TestPlanAndURL(t *testing.T) {
	dates := Plan(2019, 2020, []int{11, 6})
	if len(dates) != 4 {
		t.Fatalf("expected 4 dates, got %d", len(dates))
	}
	if dates[0].Month() != time.June || dates[3].Year() != 2020 || dates[3].Month() != time.November {
		t.Fatalf("unexpected plan: %v", dates)
	}
	got := URLFor("https://example.org/{yyyy}/{mm}/TOP500_{yyyy}{mm}.xml", dates[0])
	if got != "https://example.org/2019/06/TOP500_201906.xml" {
		t.Fatalf("unexpected url %q", got)
	}
	if name := FileName(dates[1]); name != "TOP500_201911.xml" {
		t.Fatalf("unexpected file name %q", name)
	}
}

func TestDownloadCachesExisting(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(listBody))
	}))
	defer srv.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "TOP500_202006.xml"), []byte(listBody), 0o644); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	opts := Options{
		Dir:         dir,
		URLTemplate: srv.URL + "/{yyyy}/{mm}.xml",
		Months:      []int{6, 11},
		From:        2020,
		To:          2020,
		Client:      srv.Client(),
	}
	results, err := Download(context.Background(), opts)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Cached || results[1].Cached {
		t.Fatalf("unexpected cache flags: %+v", results)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected 1 request, got %d", hits.Load())
	}
	data, err := os.ReadFile(filepath.Join(dir, "TOP500_202011.xml"))
	if err != nil {
		t.Fatalf("read downloaded: %v", err)
	}
	if !strings.Contains(string(data), "top500:site") {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestDownloadBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := Download(context.Background(), Options{
		Dir:         dir,
		URLTemplate: srv.URL + "/{yyyy}{mm}",
		Months:      []int{6},
		From:        2021,
		To:          2021,
		Client:      srv.Client(),
	})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files left behind, got %d", len(entries))
	}
}

func TestDownloadRejectsInvalidXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>maintenance"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, err := Download(context.Background(), Options{
		Dir:         dir,
		URLTemplate: srv.URL + "/{yyyy}{mm}",
		Months:      []int{11},
		From:        2021,
		To:          2021,
		Client:      srv.Client(),
	})
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "TOP500_202111.xml")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no snapshot file, got %v", statErr)
	}
}

func TestDownloadStopsAtUntil(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(listBody))
	}))
	defer srv.Close()

	results, err := Download(context.Background(), Options{
		Dir:         t.TempDir(),
		URLTemplate: srv.URL + "/{yyyy}{mm}",
		Months:      []int{6, 11},
		From:        2024,
		To:          2024,
		Until:       time.Date(2024, time.July, 15, 0, 0, 0, 0, time.UTC),
		Client:      srv.Client(),
	})
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(results) != 1 || hits.Load() != 1 {
		t.Fatalf("expected only the June list, got %d results and %d requests", len(results), hits.Load())
	}
}

func TestDownloadValidation(t *testing.T) {
	if _, err := Download(context.Background(), Options{URLTemplate: "x", From: 2020, To: 2020}); err == nil {
		t.Fatalf("expected missing dir error")
	}
	if _, err := Download(context.Background(), Options{Dir: t.TempDir(), URLTemplate: "x", From: 2021, To: 2020}); err == nil {
		t.Fatalf("expected range error")
	}
}
