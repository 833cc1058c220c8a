package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

var (
	pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)
	extensionPattern     = regexp.MustCompile(`^\.[a-zA-Z0-9]{1,8}$`)
)

const ReceiptPrefix = "receipts"

// BuildReceiptPath returns receipts/<expense id>/<object id><ext>. The
// extension of the uploaded file name is kept when it looks sane.
func BuildReceiptPath(expenseID int64, objectID, fileName string) (string, error) {
	if expenseID <= 0 {
		return "", fmt.Errorf("expense id must be > 0")
	}
	if err := validatePathComponent(objectID, "object id"); err != nil {
		return "", err
	}
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if !extensionPattern.MatchString(ext) {
		ext = ""
	}
	return path.Join(ReceiptPrefix, fmt.Sprintf("%d", expenseID), objectID+ext), nil
}

// BuildExportPath partitions exports by UTC day so the latest export sorts last.
func BuildExportPath(prefix string, at time.Time, runID string) (string, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "", fmt.Errorf("export prefix is required")
	}
	for _, component := range strings.Split(prefix, "/") {
		if err := validatePathComponent(component, "export prefix"); err != nil {
			return "", err
		}
	}
	if err := validatePathComponent(runID, "run id"); err != nil {
		return "", err
	}
	ts := at.UTC()
	return path.Join(
		prefix,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("expenses-%d-%s.parquet", ts.Unix(), runID),
	), nil
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
