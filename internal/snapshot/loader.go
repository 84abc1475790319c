// Package snapshot loads dated ranking-list documents and extracts series from them.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/verte-zerg/hpctrend/internal/model"
)

const (
	// DefaultDatePattern takes a six digit YYYYMM token opening the second
	// underscore-delimited segment. A longer run of digits is rejected.
	DefaultDatePattern = `^[^_]*_(\d{6})(?:\D|$)`
	// DefaultDateLayout parses the captured token.
	DefaultDateLayout = "200601"
)

// Load and extraction errors.
var (
	ErrBadFilename       = errors.New("filename does not encode a capture date")
	ErrDuplicateSnapshot = errors.New("duplicate snapshot for capture month")
	ErrMissingElement    = errors.New("missing element")
	ErrBadRank           = errors.New("rank is not an integer")

	errNoCaptureGroup = errors.New("date pattern must have a capture group")
)

// Options controls how a snapshot directory is read.
type Options struct {
	Dir         string
	DatePattern string
	DateLayout  string
	Namespace   string
}

// OptionsFromConfig maps a run config to loader options.
func OptionsFromConfig(cfg model.Config) Options {
	return Options{
		Dir:         cfg.DataDir,
		DatePattern: cfg.DatePattern,
		DateLayout:  cfg.DateLayout,
		Namespace:   cfg.Namespace,
	}
}

// DatePattern compiles a filename date pattern. The first capture group holds the token.
func DatePattern(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		expr = DefaultDatePattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid date pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, errNoCaptureGroup
	}
	return re, nil
}

// ParseCaptureDate derives the capture month from a snapshot filename.
// The day is always the 1st, in UTC.
func ParseCaptureDate(name string, pattern *regexp.Regexp, layout string) (time.Time, error) {
	if layout == "" {
		layout = DefaultDateLayout
	}
	match := pattern.FindStringSubmatch(name)
	if len(match) < 2 || match[1] == "" {
		return time.Time{}, fmt.Errorf("%w: %s", ErrBadFilename, name)
	}
	parsed, err := time.ParseInLocation(layout, match[1], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrBadFilename, name, err)
	}
	return time.Date(parsed.Year(), parsed.Month(), 1, 0, 0, 0, 0, time.UTC), nil
}

// Load reads every snapshot file in opts.Dir. Any bad file aborts the load.
func Load(opts Options) (*Collection, error) {
	pattern, err := DatePattern(opts.DatePattern)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	coll := NewCollection(opts.Namespace)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		date, err := ParseCaptureDate(name, pattern, opts.DateLayout)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(opts.Dir, name)
		doc, err := ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if err := coll.Add(model.Snapshot{Date: date, Path: path}, doc); err != nil {
			return nil, err
		}
	}
	return coll, nil
}
