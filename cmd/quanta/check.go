package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"quanta/internal/scenario"
)

var checkCmd = &cobra.Command{
	Use:   "check <scenario.toml>...",
	Short: "Validate scenario files without running them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		quiet := quietFlag(cmd)
		var errs []error
		for _, path := range args {
			sc, err := scenario.Load(path)
			if err != nil {
				fmt.Fprintf(out, "%s %v\n", failStyle.Sprint("error"), err)
				errs = append(errs, err)
				continue
			}
			if quiet {
				continue
			}
			expect := "no expectations"
			if sc.Expect != nil {
				expect = fmt.Sprintf("%d expected lines", len(sc.Expect))
			}
			fmt.Fprintf(out, "%s %s: %d thread defs, quantum %d, events %d, %s\n",
				okStyle.Sprint("ok"), sc.Name, len(sc.Threads), sc.Quantum, sc.Events, expect)
		}
		return errors.Join(errs...)
	},
}
