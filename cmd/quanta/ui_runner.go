package main

import (
	"context"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"quanta/internal/scenario"
	"quanta/internal/sched"
	"quanta/internal/ui"
)

type runOutcome struct {
	result *scenario.Result
	err    error
}

func runWithUI(ctx context.Context, sc *scenario.Scenario, opts scenario.Options) (*scenario.Result, error) {
	events := make(chan sched.Transition, 256)
	outcomeCh := make(chan runOutcome, 1)

	var names sync.Map
	opts.Observer = sched.ObserverFunc(func(tr sched.Transition) { events <- tr })
	opts.Named = func(id sched.ThreadID, name string) { names.Store(id, name) }

	go func() {
		res, err := scenario.Run(ctx, sc, opts)
		outcomeCh <- runOutcome{result: res, err: err}
		close(events)
	}()

	lookup := func(id sched.ThreadID) string {
		if v, ok := names.Load(id); ok {
			return v.(string)
		}
		return ""
	}
	model := ui.NewMonitor(sc.Name, events, lookup)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()

	// The view may quit early; keep the scheduler from blocking on sends.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
