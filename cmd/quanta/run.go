package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"quanta/internal/journal"
	"quanta/internal/observ"
	"quanta/internal/scenario"
	"quanta/internal/sched"
)

var errExpectation = errors.New("run log does not match expectations")

var runCmd = &cobra.Command{
	Use:   "run <scenario.toml>",
	Short: "Run a scenario and check its log against [expect]",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func() error {
			return runScenario(cmd, args[0])
		})
	},
}

func init() {
	runCmd.Flags().String("ui", "auto", "live thread view (auto|on|off)")
	runCmd.Flags().String("journal", "", "write the schedule journal (msgpack) to this path")
	runCmd.Flags().Bool("no-expect", false, "ignore the scenario's [expect] section")
	runCmd.Flags().Bool("transitions", false, "print every state transition")
}

func runScenario(cmd *cobra.Command, path string) error {
	uiFlag, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}
	journalPath, err := cmd.Flags().GetString("journal")
	if err != nil {
		return err
	}
	noExpect, err := cmd.Flags().GetBool("no-expect")
	if err != nil {
		return err
	}
	showTransitions, err := cmd.Flags().GetBool("transitions")
	if err != nil {
		return err
	}
	quiet := quietFlag(cmd)
	out := cmd.OutOrStdout()
	timer := observ.NewTimer()

	var sc *scenario.Scenario
	err = timer.Measure("load", func() (string, error) {
		var err error
		sc, err = scenario.Load(path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d thread defs", len(sc.Threads)), nil
	})
	if err != nil {
		return err
	}

	var res *scenario.Result
	runErr := timer.Measure("run", func() (string, error) {
		var err error
		res, err = execute(cmd.Context(), sc, !quiet && shouldUseTUI(mode))
		if res == nil {
			return "", err
		}
		return fmt.Sprintf("%d entries", len(res.Log)), err
	})
	if res == nil {
		return runErr
	}

	if !quiet {
		printReport(out, res, showTransitions)
	}

	if journalPath != "" {
		err = timer.Measure("journal", func() (string, error) {
			j, err := journal.FromResult(res)
			if err != nil {
				return "", err
			}
			if err := journal.Save(journalPath, j); err != nil {
				return "", err
			}
			return fmt.Sprintf("%d records", len(j.Records)), nil
		})
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
	}

	if timingsFlag(cmd) {
		fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
	}
	if runErr != nil {
		return runErr
	}
	if noExpect {
		return nil
	}
	return checkExpectations(out, res, quiet)
}

// execute runs sc, optionally behind the live view.
func execute(ctx context.Context, sc *scenario.Scenario, useTUI bool) (*scenario.Result, error) {
	opts := scenario.Options{
		Started: func(s *sched.Scheduler) { activeScheduler.Store(s) },
	}
	defer activeScheduler.Store(nil)
	if useTUI {
		return runWithUI(ctx, sc, opts)
	}
	return scenario.Run(ctx, sc, opts)
}

var (
	okStyle    = color.New(color.FgGreen, color.Bold)
	failStyle  = color.New(color.FgRed, color.Bold)
	dimStyle   = color.New(color.Faint)
	stateStyle = map[sched.State]*color.Color{
		sched.StateTerminated: color.New(color.FgHiBlack),
		sched.StateWaiting:    color.New(color.FgYellow),
		sched.StateRunning:    color.New(color.FgGreen),
		sched.StateReady:      color.New(color.FgCyan),
	}
)

func printReport(out io.Writer, res *scenario.Result, transitions bool) {
	for i, line := range res.Lines() {
		fmt.Fprintf(out, "%s %s\n", dimStyle.Sprintf("%4d", i+1), line)
	}
	if transitions {
		fmt.Fprintln(out)
		for _, tr := range res.Transitions {
			ev := ""
			if tr.Event >= 0 {
				ev = fmt.Sprintf(" event %d", tr.Event)
			}
			fmt.Fprintf(out, "%s thread %d %s -> %s (%s)%s\n",
				dimStyle.Sprintf("t%-4d", tr.Tick), tr.Thread, tr.From, tr.To, tr.Reason, ev)
		}
	}
	fmt.Fprintln(out)
	for _, th := range res.Threads {
		st := th.State.String()
		if c, ok := stateStyle[th.State]; ok {
			st = c.Sprint(st)
		}
		fmt.Fprintf(out, "%3d %s prio=%d %s\n", th.ID, padName(th.Name, 16), th.Priority, st)
	}
}

func checkExpectations(out io.Writer, res *scenario.Result, quiet bool) error {
	if res.Scenario.Expect == nil {
		return nil
	}
	if diff := res.Mismatch(); diff != "" {
		fmt.Fprintf(out, "%s %s\n", failStyle.Sprint("mismatch"), diff)
		return errExpectation
	}
	if !quiet {
		fmt.Fprintf(out, "%s %d log lines match\n", okStyle.Sprint("ok"), len(res.Log))
	}
	return nil
}
