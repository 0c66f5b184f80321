package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/loan"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	var due, asOf string

	cmd := &cobra.Command{
		Use:   "classify [days-past-due]",
		Short: "Classify delinquency from days past due",
		Long: `Buckets a loan as current, early_arrears, late_arrears or default. Pass the
days past due directly, or --due with the oldest unpaid due date.`,
		Example: `  loanctl classify 45
  loanctl classify --due 2025-03-01 --as-of 2025-04-20`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := daysPastDue(args, due, asOf)
			if err != nil {
				return err
			}
			cliLogger(cmd).Debug("Classifying delinquency", "days_past_due", days)

			state := dto.NewDelinquencyResponse(loan.Classify(days))
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), state)
			}
			t := newTable(cmd.OutOrStdout(), "STATUS", "DAYS PAST DUE", "MISSED PAYMENTS")
			t.row(state.Status, strconv.Itoa(state.DaysPastDue), strconv.Itoa(state.MissedPayments))
			return t.flush()
		},
	}

	cmd.Flags().StringVar(&due, "due", "", "oldest unpaid due date, YYYY-MM-DD")
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date, YYYY-MM-DD (default today)")
	return cmd
}

func daysPastDue(args []string, due, asOf string) (int, error) {
	switch {
	case len(args) == 1 && due != "":
		return 0, errors.New("pass either days past due or --due, not both")
	case len(args) == 1:
		days, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, fmt.Errorf("days past due %q is not a whole number", args[0])
		}
		return days, nil
	case due != "":
		dueDate, err := civil.ParseDate(due)
		if err != nil {
			return 0, errors.New("--due must be a date formatted YYYY-MM-DD")
		}
		evaluated := civil.DateOf(time.Now())
		if asOf != "" {
			if evaluated, err = civil.ParseDate(asOf); err != nil {
				return 0, errors.New("--as-of must be a date formatted YYYY-MM-DD")
			}
		}
		return evaluated.DaysSince(dueDate), nil
	}
	return 0, errors.New("days past due or --due is required")
}
