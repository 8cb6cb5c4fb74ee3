package artifact

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"goa.design/runledger/canon"
	"goa.design/runledger/suite"
)

// jsonlRecord is one line of run.jsonl: a case's trace event plus the case
// id it belongs to, so a reader can reconstruct per-case traces from the
// flat file.
type jsonlRecord struct {
	CaseID string         `json:"case_id"`
	Kind   string         `json:"kind"`
	Data   map[string]any `json:"data,omitempty"`
}

// WriteRunJSONL writes every case's trace, in suite order, to path as one
// redacted JSON object per line, replacing any existing content.
func WriteRunJSONL(path string, result suite.SuiteResult) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- operator-configured output dir
	if err != nil {
		return fmt.Errorf("artifact: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	redactor := canon.DefaultRedactor{}
	enc := json.NewEncoder(w)
	for _, c := range result.Cases {
		for _, ev := range c.Trace {
			rec := jsonlRecord{
				CaseID: c.CaseID,
				Kind:   string(ev.Kind),
				Data:   redactor.Redact(ev.Data).(map[string]any),
			}
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("artifact: encode trace event: %w", err)
			}
		}
	}
	return w.Flush()
}
