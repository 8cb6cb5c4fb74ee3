// Package artifact renders a completed suite run's Summary into the run
// directory's external artifacts: junit.xml, run.jsonl, and an optional
// HTML report. None of the core packages import this package; it is a
// consumer of summary.Summary and suite.SuiteResult, wired only from
// cmd/runledger.
package artifact

import (
	"encoding/xml"
	"fmt"
	"os"

	"goa.design/runledger/summary"
)

type junitTestsuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	Testcases []junitTestcase `xml:"testcase"`
}

type junitTestcase struct {
	Name    string        `xml:"name,attr"`
	Time    float64       `xml:"time,attr"`
	Failure *junitFailure `xml:"failure,omitempty"`
	Error   *junitFailure `xml:"error,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

// WriteJUnit renders s as a JUnit XML document at path: one testcase per
// case, a <failure> for status "fail" and an <error> for status "error".
func WriteJUnit(path string, s summary.Summary) error {
	ts := junitTestsuite{
		Name:     s.Suite.Name,
		Tests:    s.Aggregates.CasesTotal,
		Failures: s.Aggregates.CasesFail,
		Errors:   s.Aggregates.CasesError,
	}
	for _, c := range s.Cases {
		tc := junitTestcase{Name: c.CaseID, Time: float64(c.WallMS) / 1000}
		ts.Time += tc.Time
		switch c.Status {
		case "fail":
			tc.Failure = &junitFailure{Message: c.FailureType, Text: c.FailureMessage}
		case "error":
			tc.Error = &junitFailure{Message: c.FailureType, Text: c.FailureMessage}
		}
		ts.Testcases = append(ts.Testcases, tc)
	}

	b, err := xml.MarshalIndent(ts, "", "  ")
	if err != nil {
		return fmt.Errorf("artifact: marshal junit: %w", err)
	}
	out := append([]byte(xml.Header), b...)
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	return nil
}
