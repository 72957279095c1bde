package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (cli *commandLine) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every enrolment from the lesson completions",
		RunE: func(_ *cobra.Command, _ []string) error {
			start := time.Now()
			report, err := cli.complSvc.Reconcile(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "checked %d enrolments in %s\n", report.Checked, time.Since(start).Round(time.Millisecond))
			cli.success("updated %d, completed %d courses", report.Updated, report.CoursesCompleted)
			return nil
		},
	}
}
