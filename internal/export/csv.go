// Package export writes draft CSV files for later download.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/s22625/casetab/internal/model"
)

// WriteCSV writes the rows as a draft CSV into dir and returns the generated
// filename. Headers follow the issue type's column set.
func WriteCSV(dir string, issueType model.IssueType, rows []model.Row) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	ts := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("%s-ticket-%s.csv", strings.ToLower(string(issueType)), ts)
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(issueType.CSVHeaders()); err != nil {
		return "", fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(r.CSVRecord()); err != nil {
			return "", fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flushing csv: %w", err)
	}

	return filename, nil
}

// Resolve returns the path of an exported file inside dir. The name is
// reduced to its base to keep downloads inside the export directory; whether
// the file exists is the caller's concern.
func Resolve(dir, filename string) (string, error) {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == ".." {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(dir, base), nil
}
