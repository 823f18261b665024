package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"quanta/internal/journal"
	"quanta/internal/scenario"
)

var errDiverged = errors.New("schedule diverged from journal")

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.toml>",
	Short: "Re-run a scenario and compare its schedule with a saved journal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		against, err := cmd.Flags().GetString("against")
		if err != nil {
			return err
		}
		return withRuntime(cmd, func() error {
			return replayScenario(cmd, args[0], against)
		})
	},
}

func init() {
	replayCmd.Flags().String("against", "", "reference journal written by `run --journal`")
	_ = replayCmd.MarkFlagRequired("against")
}

func replayScenario(cmd *cobra.Command, path, against string) error {
	want, err := journal.Load(against)
	if err != nil {
		return err
	}
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	res, err := execute(cmd.Context(), sc, false)
	if err != nil {
		return err
	}
	got, err := journal.FromResult(res)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if want.Scenario != got.Scenario && !quietFlag(cmd) {
		fmt.Fprintf(out, "note: journal was recorded for %q, replaying %q\n", want.Scenario, got.Scenario)
	}
	if d, diverged := journal.Diff(want, got); diverged {
		fmt.Fprintf(out, "%s %s\n", failStyle.Sprint("diverged"), d)
		return errDiverged
	}
	if !quietFlag(cmd) {
		fmt.Fprintf(out, "%s %d records identical\n", okStyle.Sprint("ok"), len(got.Records))
	}
	return nil
}
