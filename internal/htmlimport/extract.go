// Package htmlimport extracts job IDs from saved search-result pages.
// Saving pages from a logged-in browser sidesteps the search API entirely,
// which is useful when a saved search already encodes the right filters.
package htmlimport

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/Prakashmaheshwaran/handshook/pkg/logging"
)

// ID patterns, most to least specific. The bare "id" JSON pattern is
// restricted by digit count below because it also matches employer and
// document IDs.
var (
	jobURLPattern   = regexp.MustCompile(`/jobs/(\d+)`)
	dataAttrPattern = regexp.MustCompile(`data-job-id="(\d+)"`)
	jsonKeyPattern  = regexp.MustCompile(`"job_id["\s:]+(\d+)`)
	bareIDPattern   = regexp.MustCompile(`"id"\s*:\s*(\d+)`)
)

const (
	bareIDMinDigits = 6
	bareIDMaxDigits = 10
)

// ExtractJobIDs returns the unique job IDs found in one page, sorted
// numerically.
func ExtractJobIDs(content string) []string {
	seen := make(map[string]bool)

	for _, p := range []*regexp.Regexp{jobURLPattern, dataAttrPattern, jsonKeyPattern} {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			seen[m[1]] = true
		}
	}
	for _, m := range bareIDPattern.FindAllStringSubmatch(content, -1) {
		if n := len(m[1]); n >= bareIDMinDigits && n <= bareIDMaxDigits {
			seen[m[1]] = true
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.ParseUint(ids[i], 10, 64)
		b, _ := strconv.ParseUint(ids[j], 10, 64)
		return a < b
	})
	return ids
}

// ScanDir extracts job IDs from every .html/.htm file under dir. A file
// that cannot be read is skipped with a warning; a missing or empty
// directory yields no IDs and no error.
func ScanDir(dir string, log *logging.Logger) ([]string, error) {
	files, err := ListPages(dir)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var all []string
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			log.Warn("could not read saved page, skipped", "file", path, "cause", err)
			continue
		}
		ids := ExtractJobIDs(string(content))
		log.Info("extracted job IDs from saved page", "file", filepath.Base(path), "count", len(ids))
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				all = append(all, id)
			}
		}
	}
	return all, nil
}

// ListPages returns the saved HTML files under dir, sorted by name.
func ListPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read html directory %s", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".html", ".htm":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// RemovePages deletes processed saved pages so the next run starts clean.
func RemovePages(files []string, log *logging.Logger) {
	for _, path := range files {
		if err := os.Remove(path); err != nil {
			log.Warn("could not delete saved page", "file", path, "cause", err)
			continue
		}
		log.Debug("deleted saved page", "file", path)
	}
}
