package observ

import (
	"errors"
	"strings"
	"testing"
)

func TestMeasureRecordsPhases(t *testing.T) {
	tm := NewTimer()
	if err := tm.Measure("load", func() (string, error) { return "3 threads", nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boom := errors.New("boom")
	if err := tm.Measure("run", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("Measure must return fn's error, got %v", err)
	}

	report := tm.Report()
	if len(report.Phases) != 2 {
		t.Fatalf("phases = %d, want 2", len(report.Phases))
	}
	if report.Phases[0].Note != "3 threads" || report.Phases[1].Note != "failed" {
		t.Fatalf("unexpected notes: %+v", report.Phases)
	}

	summary := tm.Summary()
	for _, want := range []string{"load", "run", "total", "// 3 threads"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestEndIgnoresBadIndex(t *testing.T) {
	tm := NewTimer()
	tm.End(3, "x")
	if len(tm.Report().Phases) != 0 {
		t.Fatal("End must not create phases")
	}
}
