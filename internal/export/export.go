// Package export renders pipeline results to files for downstream analysis.
//
// Every run writes cases.json, the raw segment texts, so that a run can be
// re-summarised later without repeating transcription and segmentation. The
// analyst-facing formats (pipeline_output.json, pipeline_output.csv) are
// opt-in via configuration.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/casevox/casevox/internal/classify"
	"github.com/casevox/casevox/internal/config"
	"github.com/casevox/casevox/internal/pipeline"
)

// Output file names within the export directory.
const (
	casesFile = "cases.json"
	jsonFile  = "pipeline_output.json"
	csvFile   = "pipeline_output.csv"
)

// Row is one case in the analyst-facing output. The classification fields are
// only present when classification ran for the case.
type Row struct {
	CaseIndex int             `json:"case_index"`
	Text      string          `json:"text"`
	Summary   string          `json:"summary"`
	Category  string          `json:"category,omitempty"`
	Flags     *classify.Flags `json:"flags,omitempty"`
	RiskScore *int            `json:"risk_score,omitempty"`
}

// document is the envelope of pipeline_output.json.
type document struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Cases       []Row     `json:"cases"`
}

// Write renders result into cfg.Dir and returns the paths of all files
// written. cases.json is always produced; the other formats follow
// cfg.Formats. The directory is created if it does not exist.
func Write(result *pipeline.Result, cfg config.ExportConfig) ([]string, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: create dir: %w", err)
	}

	rows := buildRows(result.Cases)
	written := make([]string, 0, 1+len(cfg.Formats))

	casesPath := filepath.Join(dir, casesFile)
	if err := writeJSON(casesPath, map[string][]string{"cases": caseTexts(result.Cases)}); err != nil {
		return nil, err
	}
	written = append(written, casesPath)

	for _, format := range cfg.Formats {
		switch format {
		case config.ExportJSON:
			path := filepath.Join(dir, jsonFile)
			doc := document{
				RunID:       result.RunID,
				GeneratedAt: time.Now().UTC(),
				Cases:       rows,
			}
			if err := writeJSON(path, doc); err != nil {
				return nil, err
			}
			written = append(written, path)

		case config.ExportCSV:
			path := filepath.Join(dir, csvFile)
			if err := writeCSV(path, rows); err != nil {
				return nil, err
			}
			written = append(written, path)
		}
	}
	return written, nil
}

// buildRows converts pipeline cases to output rows, flattening the optional
// classification.
func buildRows(cases []pipeline.Case) []Row {
	rows := make([]Row, len(cases))
	for i, c := range cases {
		row := Row{
			CaseIndex: c.Index,
			Text:      c.Text,
			Summary:   c.Summary,
		}
		if c.Classification != nil {
			row.Category = c.Classification.Category
			flags := c.Classification.Flags
			row.Flags = &flags
			risk := c.Classification.RiskScore
			row.RiskScore = &risk
		}
		rows[i] = row
	}
	return rows
}

func caseTexts(cases []pipeline.Case) []string {
	texts := make([]string, len(cases))
	for i, c := range cases {
		texts[i] = c.Text
	}
	return texts
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeCSV renders rows to CSV. The header grows the classification columns
// only when at least one row carries them; flag sets are embedded as compact
// JSON objects in their cell.
func writeCSV(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	classified := false
	for _, r := range rows {
		if r.Flags != nil {
			classified = true
			break
		}
	}

	header := []string{"case_index", "text", "summary"}
	if classified {
		header = append(header, "category", "flags", "risk_score")
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("export: write csv header: %w", err)
	}

	for _, r := range rows {
		record := []string{strconv.Itoa(r.CaseIndex), r.Text, r.Summary}
		if classified {
			var flagsCell string
			var riskCell string
			if r.Flags != nil {
				flagsJSON, err := json.Marshal(r.Flags)
				if err != nil {
					return fmt.Errorf("export: marshal flags: %w", err)
				}
				flagsCell = string(flagsJSON)
			}
			if r.RiskScore != nil {
				riskCell = strconv.Itoa(*r.RiskScore)
			}
			record = append(record, r.Category, flagsCell, riskCell)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("export: write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export: flush csv: %w", err)
	}
	return nil
}
