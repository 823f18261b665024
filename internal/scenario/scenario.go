// Package scenario describes scripted logical threads in TOML and runs them
// on the scheduler.
package scenario

import (
	"errors"
	"fmt"
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"

	"quanta/internal/sched"
)

// Scenario is a validated scenario file.
type Scenario struct {
	Path    string
	Name    string
	Quantum uint
	Events  uint
	Threads []ThreadDef
	Root    int      // index into Threads of the thread spawned first
	Expect  []string // expected log lines; nil when the file has no [expect]
}

// ThreadDef is a named, scripted thread template. A template may be forked
// any number of times.
type ThreadDef struct {
	Name     string
	Priority uint
	Script   []Instr
}

type fileConfig struct {
	Name      string         `toml:"name"`
	Scheduler schedulerTable `toml:"scheduler"`
	Threads   []threadTable  `toml:"thread"`
	Expect    expectTable    `toml:"expect"`
}

type schedulerTable struct {
	Quantum int64 `toml:"quantum"`
	Events  int64 `toml:"events"`
}

type threadTable struct {
	Name     string   `toml:"name"`
	Priority int64    `toml:"priority"`
	Start    bool     `toml:"start"`
	Script   []string `toml:"script"`
}

type expectTable struct {
	Log []string `toml:"log"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	sc, err := build(cfg, meta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Path = path
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// Parse validates a scenario held in memory.
func Parse(data string) (*Scenario, error) {
	var cfg fileConfig
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return build(cfg, meta)
}

func build(cfg fileConfig, meta toml.MetaData) (*Scenario, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if !meta.IsDefined("scheduler") {
		return nil, errors.New("missing [scheduler]")
	}
	if !meta.IsDefined("scheduler", "quantum") {
		return nil, errors.New("missing [scheduler].quantum")
	}

	quantum, err := safecast.Conv[uint](cfg.Scheduler.Quantum)
	if err != nil || quantum == 0 {
		return nil, fmt.Errorf("[scheduler].quantum must be a positive integer, got %d", cfg.Scheduler.Quantum)
	}
	events, err := safecast.Conv[uint](cfg.Scheduler.Events)
	if err != nil || events > sched.MaxEvents {
		return nil, fmt.Errorf("[scheduler].events must be in [0, %d], got %d", sched.MaxEvents, cfg.Scheduler.Events)
	}

	if len(cfg.Threads) == 0 {
		return nil, errors.New("no [[thread]] defined")
	}

	sc := &Scenario{
		Name:    strings.TrimSpace(cfg.Name),
		Quantum: quantum,
		Events:  events,
		Threads: make([]ThreadDef, len(cfg.Threads)),
		Root:    -1,
	}
	if meta.IsDefined("expect", "log") {
		sc.Expect = append([]string{}, cfg.Expect.Log...)
	}

	index := make(map[string]int, len(cfg.Threads))
	for i, th := range cfg.Threads {
		name := strings.TrimSpace(th.Name)
		if !validName(name) {
			return nil, fmt.Errorf("thread %d: invalid name %q (use letters, digits, '-' or '_')", i, th.Name)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("thread %q defined twice", name)
		}
		index[name] = i

		prio, err := safecast.Conv[uint](th.Priority)
		if err != nil || prio > sched.MaxPriority {
			return nil, fmt.Errorf("thread %q: priority must be in [0, %d], got %d", name, sched.MaxPriority, th.Priority)
		}
		if th.Start {
			if sc.Root >= 0 {
				return nil, fmt.Errorf("thread %q: only one thread may set start = true (already %q)", name, sc.Threads[sc.Root].Name)
			}
			sc.Root = i
		}
		sc.Threads[i] = ThreadDef{Name: name, Priority: prio}
	}
	if sc.Root < 0 {
		return nil, errors.New("no thread sets start = true")
	}

	for i, th := range cfg.Threads {
		script, err := compileScript(th.Script, index, events)
		if err != nil {
			return nil, fmt.Errorf("thread %q: %w", sc.Threads[i].Name, err)
		}
		sc.Threads[i].Script = script
	}
	return sc, nil
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
