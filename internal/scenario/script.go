package scenario

import (
	"fmt"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Op is a script instruction.
type Op uint8

const (
	OpExec Op = iota + 1
	OpWait
	OpSignal
	OpFork
	OpLog
)

// String returns the mnemonic of the instruction.
func (o Op) String() string {
	switch o {
	case OpExec:
		return "exec"
	case OpWait:
		return "wait"
	case OpSignal:
		return "signal"
	case OpFork:
		return "fork"
	case OpLog:
		return "log"
	default:
		return "unknown"
	}
}

// Instr is one compiled script line.
type Instr struct {
	Op     Op
	Count  uint   // exec repetitions
	Event  uint   // wait/signal
	Target int    // fork: index into Scenario.Threads
	Text   string // log
}

func compileScript(lines []string, index map[string]int, events uint) ([]Instr, error) {
	out := make([]Instr, 0, len(lines))
	for n, line := range lines {
		in, err := compileLine(line, index, events)
		if err != nil {
			return nil, fmt.Errorf("script[%d] %q: %w", n, line, err)
		}
		out = append(out, in)
	}
	return out, nil
}

func compileLine(line string, index map[string]int, events uint) (Instr, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Instr{}, fmt.Errorf("empty instruction")
	}
	op, args := strings.ToLower(fields[0]), fields[1:]
	switch op {
	case "exec":
		count := uint(1)
		if len(args) > 1 {
			return Instr{}, fmt.Errorf("exec takes at most one argument")
		}
		if len(args) == 1 {
			n, err := parseUint(args[0])
			if err != nil || n == 0 {
				return Instr{}, fmt.Errorf("exec count must be a positive integer")
			}
			count = n
		}
		return Instr{Op: OpExec, Count: count}, nil

	case "wait", "signal":
		if len(args) != 1 {
			return Instr{}, fmt.Errorf("%s takes exactly one event", op)
		}
		ev, err := parseUint(args[0])
		if err != nil {
			return Instr{}, fmt.Errorf("bad event %q", args[0])
		}
		if ev >= events {
			return Instr{}, fmt.Errorf("event %d out of range (scenario has %d)", ev, events)
		}
		kind := OpWait
		if op == "signal" {
			kind = OpSignal
		}
		return Instr{Op: kind, Event: ev}, nil

	case "fork":
		if len(args) != 1 {
			return Instr{}, fmt.Errorf("fork takes exactly one thread name")
		}
		target, ok := index[args[0]]
		if !ok {
			return Instr{}, fmt.Errorf("fork of unknown thread %q", args[0])
		}
		return Instr{Op: OpFork, Target: target}, nil

	case "log":
		return Instr{Op: OpLog, Text: strings.Join(args, " ")}, nil

	default:
		return Instr{}, fmt.Errorf("unknown instruction %q", fields[0])
	}
}

func parseUint(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return safecast.Conv[uint](v)
}
