package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"off":       LevelOff,
		"ERROR":     LevelError,
		"lifecycle": LevelLifecycle,
		"thread":    LevelThread,
		"decision":  LevelDecision,
		"debug":     LevelDecision,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestLevelShouldEmit(t *testing.T) {
	if LevelLifecycle.ShouldEmit(ScopeThread) {
		t.Error("lifecycle level must not emit thread scope")
	}
	if !LevelThread.ShouldEmit(ScopeThread) || LevelThread.ShouldEmit(ScopeDecision) {
		t.Error("thread level must emit thread scope only up to thread")
	}
	if !LevelDecision.ShouldEmit(ScopeDecision) {
		t.Error("decision level must emit everything")
	}
	if LevelError.ShouldEmit(ScopeScheduler) {
		t.Error("error level must not emit regular events")
	}
}

func TestRingTracerWrapsInOrder(t *testing.T) {
	ring := NewRingTracer(3, LevelDecision)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ring.Emit(Point(ScopeThread, name, "", nil))
	}
	events := ring.Snapshot()
	if len(events) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(events))
	}
	var names []string
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	if got := strings.Join(names, ","); got != "c,d,e" {
		t.Fatalf("snapshot order = %s, want c,d,e", got)
	}
}

func TestRingTracerFiltersByLevel(t *testing.T) {
	ring := NewRingTracer(8, LevelLifecycle)
	ring.Emit(Point(ScopeDecision, "dispatch", "", nil))
	ring.Emit(Point(ScopeScheduler, "init", "", nil))
	if n := len(ring.Snapshot()); n != 1 {
		t.Fatalf("expected only the scheduler event, got %d", n)
	}
}

func TestStreamTracerNDJSON(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelDecision, FormatNDJSON)
	st.Emit(Point(ScopeThread, "spawn", "t1", map[string]string{"priority": "3"}))

	var decoded map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("invalid ndjson %q: %v", buf.String(), err)
	}
	if decoded["name"] != "spawn" || decoded["scope"] != "thread" {
		t.Fatalf("unexpected event: %v", decoded)
	}
}

func TestFormatTextSortsExtra(t *testing.T) {
	ev := Point(ScopeDecision, "preempt", "rule=a", map[string]string{"to": "2", "from": "1"})
	ev.Seq = 7
	got := string(FormatEvent(ev, FormatText))
	if !strings.Contains(got, "preempt (rule=a) {from=1, to=2}") {
		t.Fatalf("unexpected text line: %q", got)
	}
}

func TestDumpRingsThroughMulti(t *testing.T) {
	var stream bytes.Buffer
	ring := NewRingTracer(4, LevelThread)
	multi := NewMultiTracer(LevelThread, NewStreamTracer(&stream, LevelThread, FormatText), ring)
	multi.Emit(Point(ScopeThread, "exit", "", nil))

	var dump bytes.Buffer
	found, err := DumpRings(multi, &dump, FormatText)
	if err != nil || !found {
		t.Fatalf("DumpRings found=%v err=%v", found, err)
	}
	if dump.String() != stream.String() {
		t.Fatalf("ring dump %q differs from stream %q", dump.String(), stream.String())
	}
}

func TestNewOffReturnsNop(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Enabled() {
		t.Fatal("expected disabled tracer")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ring := NewRingTracer(1, LevelThread)
	ctx := WithTracer(context.Background(), ring)
	if FromContext(ctx) != Tracer(ring) {
		t.Fatal("tracer not propagated through context")
	}
	if FromContext(context.Background()) != Nop {
		t.Fatal("missing tracer must fall back to Nop")
	}
}

func TestSpanDisabledStillMeasures(t *testing.T) {
	span := Begin(Nop, ScopeScheduler, "run", 0)
	if span.End("") < 0 {
		t.Fatal("negative duration")
	}
	if span.ID() != 0 {
		t.Fatal("disabled span must not allocate an id")
	}
}
