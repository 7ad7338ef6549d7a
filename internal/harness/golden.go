package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// renderSnapshot serializes a result's trace for golden comparison.
// The first line names the scenario; each following line is one trace
// record. Plain text keeps goldens hand-reviewable in diffs.
func renderSnapshot(name string, result *Result) []byte {
	var buf strings.Builder
	buf.WriteString("scenario: " + name + "\n")
	for _, line := range result.Trace {
		buf.WriteString(line + "\n")
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its trace against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// The golden comparison and the scenario's own assertions are
// independent checks: assertions pin the semantics the scenario is
// about, the golden pins the full trace byte for byte.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an already-computed result's trace against the
// named golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, renderSnapshot(scenarioName, result))
}
