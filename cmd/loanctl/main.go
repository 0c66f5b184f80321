// Command loanctl runs the loan calculators offline: schedules, payment
// allocation and delinquency buckets, without a database or the API.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"loan-engine/internal/infrastructure/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := execute(newRootCmd(), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "loanctl",
		Short:         "Offline loan calculators",
		Long:          `Generates amortization schedules, splits payments over outstanding balances and classifies delinquency.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "print JSON instead of a table")
	root.PersistentFlags().BoolP("verbose", "v", false, "log calculation details to stderr")

	root.AddCommand(
		newScheduleCmd(),
		newAllocateCmd(),
		newClassifyCmd(),
	)
	return root
}

// execute prints a failed command's error once, on stderr.
func execute(root *cobra.Command, args []string) error {
	root.SetArgs(args)
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	}
	return err
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := "warn"
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = "debug"
	}
	return logging.NewCLILogger(cmd.ErrOrStderr(), level)
}
