// Package cassette implements the cassette store: loading, replay matching,
// mismatch diagnostics, and record-mode appends for recorded tool
// interactions. Grounded on the teacher's integration_tests/framework
// scenario-file loading (read-whole-file, unmarshal, typed records) adapted
// from YAML scenarios to line-delimited JSON cassette entries, and on
// canon.Canonicalize/DefaultRedactor for the equality and write-boundary
// rules.
package cassette

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"goa.design/runledger/canon"
)

// Entry is one recorded tool interaction. Entries are order-preserving within
// a file; duplicates are permitted.
type Entry struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	OK     bool           `json:"ok"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// LoadError reports a malformed cassette file: missing, unreadable, or
// containing a line that fails to decode as an Entry.
type LoadError struct {
	Path       string
	LineNumber int // 0 when the failure is not line-specific (e.g. file missing)
	Reason     string
}

func (e *LoadError) Error() string {
	if e.LineNumber > 0 {
		return fmt.Sprintf("cassette_error: %s (path=%s line=%d)", e.Reason, e.Path, e.LineNumber)
	}
	return fmt.Sprintf("cassette_error: %s (path=%s)", e.Reason, e.Path)
}

// Cassette is the in-memory, loaded form of a cassette file: an ordered list
// of entries plus the path they were loaded from.
type Cassette struct {
	Path    string
	Entries []Entry
}

// Load parses a line-delimited JSON cassette file. Empty lines are skipped.
func Load(path string) (*Cassette, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from suite/case config resolved at load time
	if err != nil {
		return nil, &LoadError{Path: path, Reason: err.Error()}
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, &LoadError{Path: path, LineNumber: lineNumber, Reason: "malformed cassette entry: " + err.Error()}
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, &LoadError{Path: path, Reason: err.Error()}
	}
	return &Cassette{Path: path, Entries: entries}, nil
}

// MismatchDiagnostic describes why a requested (tool, args) pair did not
// match any cassette entry, including the closest candidates ranked by a
// textual similarity score on their canonical args.
type MismatchDiagnostic struct {
	RequestedTool string
	RequestedArgs map[string]any
	Candidates    []Candidate
}

// Candidate is one close-but-not-matching cassette entry shown in a mismatch
// diagnostic.
type Candidate struct {
	Tool       string
	ArgsPreview string
	Score      float64
}

const (
	maxCandidates   = 5
	previewMaxChars = 160
)

func (d *MismatchDiagnostic) Error() string {
	var sb strings.Builder
	reqArgs, _ := canon.CanonicalDumps(canon.DefaultRedactor{}.Redact(d.RequestedArgs))
	fmt.Fprintf(&sb, "cassette_mismatch: no recorded entry for tool %q\n", d.RequestedTool)
	fmt.Fprintf(&sb, "Requested tool: %s\n", d.RequestedTool)
	fmt.Fprintf(&sb, "Requested args: %s\n", reqArgs)
	if len(d.Candidates) == 0 {
		sb.WriteString("No candidates recorded.")
		return sb.String()
	}
	sb.WriteString("Closest recorded candidates:\n")
	for i, c := range d.Candidates {
		fmt.Fprintf(&sb, "  %d. tool=%s score=%.3f args=%s\n", i+1, c.Tool, c.Score, c.ArgsPreview)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Match returns the first entry whose tool equals name and whose
// canonicalized, redacted args equal the canonicalized, redacted requested
// args. On no match, it returns a *MismatchDiagnostic built from the closest
// candidates: entries sharing the tool name are preferred; if none share the
// tool name, every entry is considered instead.
func (c *Cassette) Match(name string, args map[string]any) (*Entry, error) {
	reqCanon, err := canon.CanonicalDumps(canon.DefaultRedactor{}.Redact(args))
	if err != nil {
		return nil, fmt.Errorf("cassette: canonicalize requested args: %w", err)
	}

	for i := range c.Entries {
		e := &c.Entries[i]
		if e.Tool != name {
			continue
		}
		entCanon, err := canon.CanonicalDumps(canon.DefaultRedactor{}.Redact(e.Args))
		if err != nil {
			return nil, fmt.Errorf("cassette: canonicalize entry args: %w", err)
		}
		if entCanon == reqCanon {
			return e, nil
		}
	}

	pool := c.sameTool(name)
	if len(pool) == 0 {
		pool = c.Entries
	}
	return nil, &MismatchDiagnostic{
		RequestedTool: name,
		RequestedArgs: args,
		Candidates:    rankCandidates(pool, reqCanon),
	}
}

func (c *Cassette) sameTool(name string) []Entry {
	var out []Entry
	for _, e := range c.Entries {
		if e.Tool == name {
			out = append(out, e)
		}
	}
	return out
}

func rankCandidates(pool []Entry, reqCanon string) []Candidate {
	type scored struct {
		entry Entry
		score float64
	}
	scoredPool := make([]scored, 0, len(pool))
	for _, e := range pool {
		entCanon, err := canon.CanonicalDumps(canon.DefaultRedactor{}.Redact(e.Args))
		if err != nil {
			continue
		}
		scoredPool = append(scoredPool, scored{entry: e, score: similarity(reqCanon, entCanon)})
	}
	sort.SliceStable(scoredPool, func(i, j int) bool { return scoredPool[i].score > scoredPool[j].score })

	n := len(scoredPool)
	if n > maxCandidates {
		n = maxCandidates
	}
	out := make([]Candidate, 0, n)
	for i := 0; i < n; i++ {
		s := scoredPool[i]
		argsCanon, _ := canon.CanonicalDumps(canon.DefaultRedactor{}.Redact(s.entry.Args))
		out = append(out, Candidate{Tool: s.entry.Tool, ArgsPreview: truncate(argsCanon, previewMaxChars), Score: s.score})
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// similarity returns a Dice's-coefficient-style bigram overlap score in
// [0,1] between two strings, used to rank mismatch candidates without
// pulling in an external string-distance library for one diagnostic path.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ag, bg := bigrams(a), bigrams(b)
	if len(ag) == 0 || len(bg) == 0 {
		return 0
	}
	var overlap int
	counts := make(map[string]int, len(bg))
	for _, g := range bg {
		counts[g]++
	}
	for _, g := range ag {
		if counts[g] > 0 {
			counts[g]--
			overlap++
		}
	}
	return 2 * float64(overlap) / float64(len(ag)+len(bg))
}

func bigrams(s string) []string {
	if len(s) < 2 {
		return nil
	}
	out := make([]string, 0, len(s)-1)
	for i := 0; i < len(s)-1; i++ {
		out = append(out, s[i:i+2])
	}
	return out
}

// Writer appends canonicalized, redacted entries to a cassette file, used by
// the case engine in record mode. Per §4.5.1, each case-run of a given
// cassette path starts the file fresh (truncated), then appends to it, so
// repeated record runs are idempotent rather than accreting duplicates.
type Writer struct {
	f *os.File
}

// NewWriter truncates (or creates) the cassette file at path and returns a
// Writer ready to append entries to it.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- path resolved at config load time
	if err != nil {
		return nil, fmt.Errorf("cassette: open %s for write: %w", path, err)
	}
	return &Writer{f: f}, nil
}

// Append writes one canonicalized, redacted entry as a single JSON line.
func (w *Writer) Append(e Entry) error {
	red := canon.DefaultRedactor{}
	canonical := Entry{
		Tool:   e.Tool,
		Args:   asObject(canon.Canonicalize(red.Redact(e.Args))),
		OK:     e.OK,
		Result: asObject(canon.Canonicalize(red.Redact(e.Result))),
		Error:  canon.RedactText(e.Error),
	}
	b, err := json.Marshal(canonical)
	if err != nil {
		return fmt.Errorf("cassette: marshal entry: %w", err)
	}
	b = append(b, '\n')
	if _, err := w.f.Write(b); err != nil {
		return fmt.Errorf("cassette: append entry: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	return w.f.Close()
}

func asObject(v any) map[string]any {
	if v == nil {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m
}
