// Package fetch downloads published ranking list snapshots.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/verte-zerg/hpctrend/internal/logger"
	"github.com/verte-zerg/hpctrend/internal/snapshot"
)

// Options controls a download run.
type Options struct {
	Dir         string
	URLTemplate string
	Months      []int
	From        int
	To          int
	// Until skips lists dated after it when set.
	Until  time.Time
	Client *http.Client
}

// Result describes one snapshot on disk.
type Result struct {
	Date   time.Time
	URL    string
	Path   string
	Cached bool
}

// Plan returns the publication dates between from and to (inclusive years), oldest first.
func Plan(from, to int, months []int) []time.Time {
	ms := append([]int(nil), months...)
	sort.Ints(ms)
	var out []time.Time
	for year := from; year <= to; year++ {
		for _, m := range ms {
			out = append(out, time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC))
		}
	}
	return out
}

// URLFor expands the {yyyy} and {mm} placeholders of template.
func URLFor(template string, date time.Time) string {
	r := strings.NewReplacer(
		"{yyyy}", date.Format("2006"),
		"{mm}", date.Format("01"),
	)
	return r.Replace(template)
}

// FileName returns the local name of the snapshot published at date.
func FileName(date time.Time) string {
	return "TOP500_" + date.Format("200601") + ".xml"
}

// Download fetches every planned snapshot into opts.Dir. Files already present are kept.
// The first failure stops the run; results for completed snapshots are returned with it.
func Download(ctx context.Context, opts Options) ([]Result, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if opts.URLTemplate == "" {
		return nil, fmt.Errorf("url template is required")
	}
	if opts.From > opts.To {
		return nil, fmt.Errorf("invalid year range %d-%d", opts.From, opts.To)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	log := logger.Named("fetch")

	var results []Result
	for _, date := range Plan(opts.From, opts.To, opts.Months) {
		if !opts.Until.IsZero() && date.After(opts.Until) {
			break
		}
		res, err := downloadOne(ctx, client, opts, date)
		if err != nil {
			return results, err
		}
		log.Debug().Str("url", res.URL).Str("path", res.Path).Bool("cached", res.Cached).Msg("snapshot ready")
		results = append(results, res)
	}
	return results, nil
}

func downloadOne(ctx context.Context, client *http.Client, opts Options, date time.Time) (Result, error) {
	res := Result{
		Date: date,
		URL:  URLFor(opts.URLTemplate, date),
		Path: filepath.Join(opts.Dir, FileName(date)),
	}
	if _, err := os.Stat(res.Path); err == nil {
		res.Cached = true
		return res, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Result{}, fmt.Errorf("failed to stat cached snapshot: %w", err)
	}

	tmpFile, err := os.CreateTemp(opts.Dir, ".snapshot-*.xml")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	resp, err := httpRequest(ctx, client, res.URL)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("unexpected status for %s: %s", res.URL, resp.Status)
	}

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		return Result{}, fmt.Errorf("failed to download snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close temp snapshot: %w", err)
	}
	if _, err := snapshot.ParseFile(tmpPath); err != nil {
		return Result{}, fmt.Errorf("downloaded %s is not a valid snapshot: %w", res.URL, err)
	}
	if err := os.Rename(tmpPath, res.Path); err != nil {
		return Result{}, fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return res, nil
}

func httpRequest(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
