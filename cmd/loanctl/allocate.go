package main

import (
	"fmt"
	"strings"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/loan"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type allocationResult struct {
	Amount      string                 `json:"amount"`
	Allocation  dto.AllocationResponse `json:"allocation"`
	Unallocated string                 `json:"unallocated"`
	Remaining   dto.BalancesResponse   `json:"remaining"`
}

func newAllocateCmd() *cobra.Command {
	var amount, principal, interest, fees, penalty string

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Split a payment over outstanding balances",
		Long: `Applies a payment to the outstanding balances in the order penalty, fees,
interest, principal and prints what each bucket received.`,
		Example: `  loanctl allocate --amount 7000 --principal 100000 --interest 5000`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			inputs := []struct{ name, raw string }{
				{"amount", amount}, {"penalty", penalty}, {"fees", fees}, {"interest", interest}, {"principal", principal},
			}
			parsed := make(map[string]decimal.Decimal, len(inputs))
			for _, in := range inputs {
				d, err := parseAmount(in.name, in.raw)
				if err != nil {
					return err
				}
				parsed[in.name] = d
			}

			balances := loan.NewBalances(parsed["principal"], parsed["interest"], parsed["fees"], parsed["penalty"])
			alloc, err := loan.Allocate(parsed["amount"], balances)
			if err != nil {
				return err
			}
			cliLogger(cmd).Debug("Payment allocated", "amount", parsed["amount"].String(),
				"outstanding", balances.Total.String(), "allocated", alloc.Total().String())

			result := allocationResult{
				Amount:      dto.Money(parsed["amount"]),
				Allocation:  dto.NewAllocationResponse(alloc),
				Unallocated: dto.Money(loan.Unallocated(parsed["amount"], alloc)),
				Remaining:   dto.NewBalancesResponse(balances.Apply(alloc)),
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			return printAllocation(cmd, balances, result)
		},
	}

	f := cmd.Flags()
	f.StringVar(&amount, "amount", "", "payment amount")
	f.StringVar(&principal, "principal", "0", "outstanding principal")
	f.StringVar(&interest, "interest", "0", "outstanding interest")
	f.StringVar(&fees, "fees", "0", "outstanding fees")
	f.StringVar(&penalty, "penalty", "0", "outstanding penalty")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func parseAmount(name, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: %q is not a decimal number", name, raw)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("--%s must not be negative", name)
	}
	return d, nil
}

func printAllocation(cmd *cobra.Command, before loan.LoanBalances, r allocationResult) error {
	out := cmd.OutOrStdout()
	t := newTable(out, "BUCKET", "OUTSTANDING", "APPLIED", "REMAINING")
	t.row("penalty", dto.Money(before.Penalty), r.Allocation.Penalty, r.Remaining.Penalty)
	t.row("fees", dto.Money(before.Fees), r.Allocation.Fees, r.Remaining.Fees)
	t.row("interest", dto.Money(before.Interest), r.Allocation.Interest, r.Remaining.Interest)
	t.row("principal", dto.Money(before.Principal), r.Allocation.Principal, r.Remaining.Principal)
	t.row("total", dto.Money(before.Total), r.Allocation.Total, r.Remaining.Total)
	if err := t.flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\nunallocated: %s\n", r.Unallocated)
	return err
}
