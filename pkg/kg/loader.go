package kg

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/soundprediction/studygraph/pkg/types"
)

// Corpus lines can be large; section texts run to tens of kilobytes.
const maxCorpusLineBytes = 4 * 1024 * 1024

// LoadCorpusJSONL reads corpus records from a JSON-lines file, one
// record per line. Lines that fail to parse are run through JSON repair
// before being skipped; skipping is logged and never aborts the load.
func LoadCorpusJSONL(path string) ([]types.CorpusRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer file.Close()

	var records []types.CorpusRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxCorpusLineBytes)

	lineNo := 0
	skipped := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		record, err := parseCorpusLine(line)
		if err != nil {
			slog.Warn("Skipping malformed corpus line",
				"line", lineNo, "error", fmt.Errorf("%w: %v", types.ErrMalformedRecord, err))
			skipped++
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	slog.Info("Loaded corpus records", "path", path, "records", len(records), "skipped", skipped)
	return records, nil
}

// parseCorpusLine decodes one JSONL line, repairing almost-JSON (single
// quotes, trailing commas, truncation) before giving up.
func parseCorpusLine(line string) (types.CorpusRecord, error) {
	var record types.CorpusRecord
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(line)
		if repairErr != nil {
			return record, fmt.Errorf("unparseable line: %v", err)
		}
		if err := json.Unmarshal([]byte(repaired), &record); err != nil {
			return record, fmt.Errorf("unparseable after repair: %v", err)
		}
	}

	if record.ModuleID == "" {
		return record, fmt.Errorf("missing module_id")
	}
	if strings.TrimSpace(record.Text) == "" {
		return record, fmt.Errorf("missing text")
	}
	return record, nil
}
