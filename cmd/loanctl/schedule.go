package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/loan"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// termsFile is the YAML layout accepted by --file.
type termsFile struct {
	Principal          string `yaml:"principal"`
	AnnualRatePercent  string `yaml:"annualRatePercent"`
	InterestType       string `yaml:"interestType"`
	TermValue          int    `yaml:"termValue"`
	TermUnit           string `yaml:"termUnit"`
	RepaymentFrequency string `yaml:"repaymentFrequency"`
	AmortizationMethod string `yaml:"amortizationMethod"`
	GracePeriodDays    int    `yaml:"gracePeriodDays"`
	StartDate          string `yaml:"startDate"`
}

func defaultTerms() termsFile {
	return termsFile{
		InterestType:       string(loan.InterestReducingBalance),
		TermUnit:           string(loan.TermMonths),
		RepaymentFrequency: string(loan.FrequencyMonthly),
		AmortizationMethod: string(loan.AmortizationEqualInstallments),
		StartDate:          civil.DateOf(time.Now()).String(),
	}
}

func loadTermsFile(path string, into *termsFile) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read terms file: %w", err)
	}
	if err := yaml.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("failed to parse terms file %s: %w", path, err)
	}
	return nil
}

func newScheduleCmd() *cobra.Command {
	var (
		file  string
		flags termsFile
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate an amortization schedule",
		Long: `Generates the installment plan for a set of loan terms. Terms come from
flags, from a YAML file given with --file, or both; flags that are set win.`,
		Example: `  loanctl schedule --principal 120000 --rate 12 --term 12 --start 2025-01-15
  loanctl schedule --file terms.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			terms := defaultTerms()
			if file != "" {
				if err := loadTermsFile(file, &terms); err != nil {
					return err
				}
			}
			overlayFlags(cmd, &terms, flags)

			logger := cliLogger(cmd)
			logger.Debug("Resolved loan terms", "file", file, "principal", terms.Principal,
				"rate", terms.AnnualRatePercent, "term", terms.TermValue, "unit", terms.TermUnit)

			schedule, err := buildSchedule(terms)
			if err != nil {
				return err
			}
			logger.Debug("Schedule generated", "installments", len(schedule), "method", terms.AmortizationMethod)
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), dto.NewScheduleResponse(schedule))
			}
			return printSchedule(cmd, schedule)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "YAML file with loan terms")
	f.StringVar(&flags.Principal, "principal", "", "amount lent")
	f.StringVar(&flags.AnnualRatePercent, "rate", "", "annual interest rate in percent")
	f.StringVar(&flags.InterestType, "interest-type", "", "flat, reducing_balance or compound")
	f.IntVar(&flags.TermValue, "term", 0, "loan term in term units")
	f.StringVar(&flags.TermUnit, "term-unit", "", "days, weeks, months or years")
	f.StringVar(&flags.RepaymentFrequency, "frequency", "", "daily, weekly, biweekly, monthly, quarterly or bullet")
	f.StringVar(&flags.AmortizationMethod, "method", "", "equal_installments, equal_principal or bullet")
	f.IntVar(&flags.GracePeriodDays, "grace-days", 0, "days before the first due date")
	f.StringVar(&flags.StartDate, "start", "", "disbursement date, YYYY-MM-DD (default today)")
	return cmd
}

// overlayFlags copies every flag the user set over the file or default terms.
func overlayFlags(cmd *cobra.Command, terms *termsFile, flags termsFile) {
	set := func(name string, apply func()) {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
	set("principal", func() { terms.Principal = flags.Principal })
	set("rate", func() { terms.AnnualRatePercent = flags.AnnualRatePercent })
	set("interest-type", func() { terms.InterestType = flags.InterestType })
	set("term", func() { terms.TermValue = flags.TermValue })
	set("term-unit", func() { terms.TermUnit = flags.TermUnit })
	set("frequency", func() { terms.RepaymentFrequency = flags.RepaymentFrequency })
	set("method", func() { terms.AmortizationMethod = flags.AmortizationMethod })
	set("grace-days", func() { terms.GracePeriodDays = flags.GracePeriodDays })
	set("start", func() { terms.StartDate = flags.StartDate })
}

func buildSchedule(t termsFile) ([]loan.Installment, error) {
	req := dto.LoanTermsRequest{
		Principal:          t.Principal,
		AnnualRatePercent:  t.AnnualRatePercent,
		InterestType:       t.InterestType,
		TermValue:          t.TermValue,
		TermUnit:           t.TermUnit,
		RepaymentFrequency: t.RepaymentFrequency,
		AmortizationMethod: t.AmortizationMethod,
		GracePeriodDays:    t.GracePeriodDays,
		StartDate:          t.StartDate,
	}
	terms, err := req.ToDomain()
	if err != nil {
		return nil, err
	}
	return loan.GenerateSchedule(terms)
}

func printSchedule(cmd *cobra.Command, schedule []loan.Installment) error {
	out := cmd.OutOrStdout()
	t := newTable(out, "#", "DUE DATE", "PRINCIPAL", "INTEREST", "TOTAL", "BALANCE")
	for _, in := range schedule {
		t.row(
			strconv.Itoa(in.Number),
			in.DueDate.String(),
			dto.Money(in.PrincipalDue),
			dto.Money(in.InterestDue),
			dto.Money(in.TotalDue),
			dto.Money(in.Balance),
		)
	}
	s := loan.Summarize(schedule)
	t.row("", "TOTAL", dto.Money(s.TotalPrincipal), dto.Money(s.TotalInterest), dto.Money(s.TotalDue), "")
	if err := t.flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%d installments, maturing %s\n", s.Installments, s.MaturityDate)
	return err
}
