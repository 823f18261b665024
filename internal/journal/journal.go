// Package journal persists the transitions of a scheduler run in msgpack so
// two runs of the same scenario can be compared.
package journal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"quanta/internal/scenario"
	"quanta/internal/sched"
)

// SchemaVersion is bumped whenever the Journal layout changes.
const SchemaVersion uint16 = 1

// ErrSchema is returned by Load for journals written by another schema.
var ErrSchema = errors.New("journal schema mismatch")

// Journal is the persisted form of one run.
type Journal struct {
	Schema   uint16
	Scenario string
	Quantum  uint32
	Events   uint32
	Records  []Record
	Log      []string
}

// Record is one persisted transition.
type Record struct {
	Tick     uint64
	Thread   uint64
	Priority uint8
	From     uint8
	To       uint8
	Reason   uint8
	Event    int16
}

// String renders a record for divergence reports.
func (r Record) String() string {
	s := fmt.Sprintf("tick %d thread %d %s->%s (%s)",
		r.Tick, r.Thread, sched.State(r.From), sched.State(r.To), sched.Reason(r.Reason))
	if r.Event >= 0 {
		s += fmt.Sprintf(" event %d", r.Event)
	}
	return s
}

// FromResult converts a scenario run into a journal.
func FromResult(res *scenario.Result) (*Journal, error) {
	if res == nil || res.Scenario == nil {
		return nil, errors.New("journal: empty result")
	}
	quantum, err := safecast.Conv[uint32](res.Scenario.Quantum)
	if err != nil {
		return nil, fmt.Errorf("journal: quantum: %w", err)
	}
	events, err := safecast.Conv[uint32](res.Scenario.Events)
	if err != nil {
		return nil, fmt.Errorf("journal: events: %w", err)
	}
	j := &Journal{
		Schema:   SchemaVersion,
		Scenario: res.Scenario.Name,
		Quantum:  quantum,
		Events:   events,
		Records:  make([]Record, 0, len(res.Transitions)),
		Log:      res.Lines(),
	}
	for i, tr := range res.Transitions {
		rec, err := record(tr)
		if err != nil {
			return nil, fmt.Errorf("journal: transition %d: %w", i, err)
		}
		j.Records = append(j.Records, rec)
	}
	return j, nil
}

func record(tr sched.Transition) (Record, error) {
	prio, err := safecast.Conv[uint8](tr.Priority)
	if err != nil {
		return Record{}, err
	}
	ev, err := safecast.Conv[int16](tr.Event)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Tick:     tr.Tick,
		Thread:   uint64(tr.Thread),
		Priority: prio,
		From:     uint8(tr.From),
		To:       uint8(tr.To),
		Reason:   uint8(tr.Reason),
		Event:    ev,
	}, nil
}

// Save writes j to path atomically.
func Save(path string, j *Journal) (err error) {
	if j == nil {
		return errors.New("journal: nil journal")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".journal-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = msgpack.NewEncoder(f).Encode(j); err != nil {
		_ = f.Close()
		return fmt.Errorf("journal: encode: %w", err)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a journal written by Save.
func Load(path string) (*Journal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var j Journal
	if err := msgpack.NewDecoder(f).Decode(&j); err != nil {
		return nil, fmt.Errorf("journal: decode %s: %w", path, err)
	}
	if j.Schema != SchemaVersion {
		return nil, fmt.Errorf("%w: %s has %d, want %d", ErrSchema, path, j.Schema, SchemaVersion)
	}
	return &j, nil
}

// Divergence describes the first point at which two journals disagree.
type Divergence struct {
	Index int
	Want  string // from the reference journal, "" past its end
	Got   string
}

// String renders the divergence.
func (d Divergence) String() string {
	return fmt.Sprintf("record %d: want %q, got %q", d.Index, d.Want, d.Got)
}

// Diff compares got against the reference want. It reports false when the
// records are identical.
func Diff(want, got *Journal) (Divergence, bool) {
	if want.Quantum != got.Quantum || want.Events != got.Events {
		return Divergence{
			Index: -1,
			Want:  fmt.Sprintf("quantum=%d events=%d", want.Quantum, want.Events),
			Got:   fmt.Sprintf("quantum=%d events=%d", got.Quantum, got.Events),
		}, true
	}
	n := max(len(want.Records), len(got.Records))
	for i := 0; i < n; i++ {
		var w, g string
		if i < len(want.Records) {
			w = want.Records[i].String()
		}
		if i < len(got.Records) {
			g = got.Records[i].String()
		}
		if w != g {
			return Divergence{Index: i, Want: w, Got: g}, true
		}
	}
	return Divergence{}, false
}
