package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// SaveCSVReports writes report_senders.csv, report_types.csv and
// report_days.csv into dir. limit caps the sender report.
func SaveCSVReports(t Transcript, dir string, limit int) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}

	reports := []struct {
		name  string
		pairs []Pair
	}{
		{"senders", Top(t.BySender, limit)},
		{"types", t.Types()},
		{"days", t.Days()},
	}

	paths := make([]string, 0, len(reports))
	for _, r := range reports {
		path := filepath.Join(dir, fmt.Sprintf("report_%s.csv", r.name))
		if err := writeReport(path, r.pairs); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeReport(path string, pairs []Pair) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Value", "Count"}); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := writer.Write([]string{p.Key, strconv.Itoa(p.Value)}); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}
