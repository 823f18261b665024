package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	// LevelOff disables tracing.
	LevelOff       Level = iota // no tracing
	LevelError                  // only emit on fatal errors
	LevelLifecycle              // scheduler lifecycle and CLI phases
	LevelThread                 // per-thread transitions
	LevelDecision               // everything including decision verdicts
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelLifecycle:
		return "lifecycle"
	case LevelThread:
		return "thread"
	case LevelDecision:
		return "decision"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "lifecycle":
		return LevelLifecycle, nil
	case "thread":
		return LevelThread, nil
	case "decision", "debug":
		return LevelDecision, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|lifecycle|thread|decision)", s)
	}
}

// ShouldEmit returns true if the given scope should emit at this level.
func (l Level) ShouldEmit(scope Scope) bool {
	switch l {
	case LevelOff, LevelError:
		return false // error events go through the crash dump path
	case LevelLifecycle:
		return scope <= ScopeScheduler
	case LevelThread:
		return scope <= ScopeThread
	case LevelDecision:
		return true
	}
	return false
}
