package dto

import (
	"strings"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/apperrors"
)

type LoanTermsRequest struct {
	Principal          string `json:"principal" example:"120000.00"`
	AnnualRatePercent  string `json:"annualRatePercent" example:"12"`
	InterestType       string `json:"interestType" example:"reducing_balance"`
	TermValue          int    `json:"termValue" example:"12"`
	TermUnit           string `json:"termUnit" example:"months"`
	RepaymentFrequency string `json:"repaymentFrequency" example:"monthly"`
	AmortizationMethod string `json:"amortizationMethod" example:"equal_installments"`
	GracePeriodDays    int    `json:"gracePeriodDays" example:"0"`
	StartDate          string `json:"startDate" example:"2025-01-15"`
}

// ToDomain parses the wire representation. Structural checks on the terms
// themselves happen in the loan package.
func (r *LoanTermsRequest) ToDomain() (loan.LoanTerms, error) {
	principal, err := parseMoney("principal", r.Principal)
	if err != nil {
		return loan.LoanTerms{}, err
	}
	rate, err := parseMoney("annualRatePercent", r.AnnualRatePercent)
	if err != nil {
		return loan.LoanTerms{}, err
	}
	start, err := parseDate("startDate", r.StartDate)
	if err != nil {
		return loan.LoanTerms{}, err
	}
	return loan.LoanTerms{
		Principal:          principal,
		AnnualRatePercent:  rate,
		InterestType:       loan.InterestType(strings.TrimSpace(r.InterestType)),
		TermValue:          r.TermValue,
		TermUnit:           loan.TermUnit(strings.TrimSpace(r.TermUnit)),
		RepaymentFrequency: loan.Frequency(strings.TrimSpace(r.RepaymentFrequency)),
		AmortizationMethod: loan.AmortizationMethod(strings.TrimSpace(r.AmortizationMethod)),
		GracePeriodDays:    r.GracePeriodDays,
		StartDate:          start,
	}, nil
}

type CreateLoanRequest struct {
	CustomerID int64 `json:"customerId" example:"1"`
	LoanTermsRequest
}

func (r *CreateLoanRequest) ToDomain(createdBy string) (loan.CreateLoanRequest, error) {
	if r.CustomerID <= 0 {
		return loan.CreateLoanRequest{}, apperrors.NewValidationError("customerId", "must be a positive number")
	}
	terms, err := r.LoanTermsRequest.ToDomain()
	if err != nil {
		return loan.CreateLoanRequest{}, err
	}
	return loan.CreateLoanRequest{CustomerID: r.CustomerID, Terms: terms, CreatedBy: createdBy}, nil
}

type RecordPaymentRequest struct {
	Amount    string     `json:"amount" example:"7000.00"`
	Method    string     `json:"method" example:"bank_transfer"`
	Reference string     `json:"reference,omitempty"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}

func (r *RecordPaymentRequest) ToDomain(loanID int64, recordedBy string) (loan.RecordPaymentRequest, error) {
	amount, err := parseMoney("amount", r.Amount)
	if err != nil {
		return loan.RecordPaymentRequest{}, err
	}
	req := loan.RecordPaymentRequest{
		LoanID:     loanID,
		Amount:     amount,
		Method:     loan.PaymentMethod(strings.TrimSpace(r.Method)),
		Reference:  strings.TrimSpace(r.Reference),
		RecordedBy: recordedBy,
	}
	if r.PaidAt != nil {
		req.PaidAt = *r.PaidAt
	}
	return req, nil
}

type AssessChargeRequest struct {
	Kind   string `json:"kind" example:"penalty"`
	Amount string `json:"amount" example:"250.00"`
	Reason string `json:"reason,omitempty"`
}

func (r *AssessChargeRequest) ToDomain() (loan.Charge, error) {
	amount, err := parseMoney("amount", r.Amount)
	if err != nil {
		return loan.Charge{}, err
	}
	return loan.Charge{
		Kind:   loan.ChargeKind(strings.TrimSpace(r.Kind)),
		Amount: amount,
		Reason: strings.TrimSpace(r.Reason),
	}, nil
}

type TermsResponse struct {
	Principal          string `json:"principal"`
	AnnualRatePercent  string `json:"annualRatePercent"`
	InterestType       string `json:"interestType"`
	TermValue          int    `json:"termValue"`
	TermUnit           string `json:"termUnit"`
	RepaymentFrequency string `json:"repaymentFrequency"`
	AmortizationMethod string `json:"amortizationMethod"`
	GracePeriodDays    int    `json:"gracePeriodDays"`
	StartDate          string `json:"startDate"`
}

func NewTermsResponse(t loan.LoanTerms) TermsResponse {
	return TermsResponse{
		Principal:          Money(t.Principal),
		AnnualRatePercent:  t.AnnualRatePercent.String(),
		InterestType:       string(t.InterestType),
		TermValue:          t.TermValue,
		TermUnit:           string(t.TermUnit),
		RepaymentFrequency: string(t.RepaymentFrequency),
		AmortizationMethod: string(t.AmortizationMethod),
		GracePeriodDays:    t.GracePeriodDays,
		StartDate:          t.StartDate.String(),
	}
}

type BalancesResponse struct {
	Principal string `json:"principal"`
	Interest  string `json:"interest"`
	Fees      string `json:"fees"`
	Penalty   string `json:"penalty"`
	Total     string `json:"total"`
}

func NewBalancesResponse(b loan.LoanBalances) BalancesResponse {
	return BalancesResponse{
		Principal: Money(b.Principal),
		Interest:  Money(b.Interest),
		Fees:      Money(b.Fees),
		Penalty:   Money(b.Penalty),
		Total:     Money(b.Total),
	}
}

type DelinquencyResponse struct {
	Status         string `json:"status"`
	DaysPastDue    int    `json:"daysPastDue"`
	MissedPayments int    `json:"missedPayments"`
}

func NewDelinquencyResponse(d loan.DelinquencyState) DelinquencyResponse {
	return DelinquencyResponse{
		Status:         string(d.Status),
		DaysPastDue:    d.DaysPastDue,
		MissedPayments: d.MissedPayments,
	}
}

type DelinquencyRefreshResponse struct {
	LoanID   int64               `json:"loanId"`
	AsOf     string              `json:"asOf"`
	Previous DelinquencyResponse `json:"previous"`
	Current  DelinquencyResponse `json:"current"`
	Changed  bool                `json:"changed"`
}

type InstallmentResponse struct {
	Number        int    `json:"number"`
	DueDate       string `json:"dueDate"`
	PrincipalDue  string `json:"principalDue"`
	InterestDue   string `json:"interestDue"`
	TotalDue      string `json:"totalDue"`
	PrincipalPaid string `json:"principalPaid"`
	InterestPaid  string `json:"interestPaid"`
	TotalPaid     string `json:"totalPaid"`
	Balance       string `json:"balance"`
	Status        string `json:"status"`
}

func NewInstallmentResponse(in loan.Installment) InstallmentResponse {
	return InstallmentResponse{
		Number:        in.Number,
		DueDate:       in.DueDate.String(),
		PrincipalDue:  Money(in.PrincipalDue),
		InterestDue:   Money(in.InterestDue),
		TotalDue:      Money(in.TotalDue),
		PrincipalPaid: Money(in.PrincipalPaid),
		InterestPaid:  Money(in.InterestPaid),
		TotalPaid:     Money(in.TotalPaid),
		Balance:       Money(in.Balance),
		Status:        string(in.Status),
	}
}

func NewInstallmentsResponse(schedule []loan.Installment) []InstallmentResponse {
	resp := make([]InstallmentResponse, len(schedule))
	for i, in := range schedule {
		resp[i] = NewInstallmentResponse(in)
	}
	return resp
}

type ScheduleSummaryResponse struct {
	Installments   int    `json:"installments"`
	TotalPrincipal string `json:"totalPrincipal"`
	TotalInterest  string `json:"totalInterest"`
	TotalDue       string `json:"totalDue"`
	FirstDueDate   string `json:"firstDueDate"`
	MaturityDate   string `json:"maturityDate"`
}

func NewScheduleSummaryResponse(schedule []loan.Installment) ScheduleSummaryResponse {
	s := loan.Summarize(schedule)
	return ScheduleSummaryResponse{
		Installments:   s.Installments,
		TotalPrincipal: Money(s.TotalPrincipal),
		TotalInterest:  Money(s.TotalInterest),
		TotalDue:       Money(s.TotalDue),
		FirstDueDate:   s.FirstDueDate.String(),
		MaturityDate:   s.MaturityDate.String(),
	}
}

type ScheduleResponse struct {
	Summary      ScheduleSummaryResponse `json:"summary"`
	Installments []InstallmentResponse   `json:"installments"`
}

func NewScheduleResponse(schedule []loan.Installment) ScheduleResponse {
	return ScheduleResponse{
		Summary:      NewScheduleSummaryResponse(schedule),
		Installments: NewInstallmentsResponse(schedule),
	}
}

type LoanResponse struct {
	ID          int64                    `json:"id"`
	CustomerID  int64                    `json:"customerId"`
	Status      string                   `json:"status"`
	Terms       TermsResponse            `json:"terms"`
	Balances    BalancesResponse         `json:"balances"`
	Delinquency DelinquencyResponse      `json:"delinquency"`
	Summary     *ScheduleSummaryResponse `json:"summary,omitempty"`
	Schedule    []InstallmentResponse    `json:"schedule,omitempty"`
	DisbursedAt *time.Time               `json:"disbursedAt,omitempty"`
	ClosedAt    *time.Time               `json:"closedAt,omitempty"`
	CreatedAt   time.Time                `json:"createdAt"`
	UpdatedAt   time.Time                `json:"updatedAt"`
}

func NewLoanResponse(ln *loan.Loan, includeSchedule bool) LoanResponse {
	resp := LoanResponse{
		ID:          ln.ID,
		CustomerID:  ln.CustomerID,
		Status:      string(ln.Status),
		Terms:       NewTermsResponse(ln.Terms),
		Balances:    NewBalancesResponse(ln.Balances),
		Delinquency: NewDelinquencyResponse(ln.Delinquency),
		DisbursedAt: ln.DisbursedAt,
		ClosedAt:    ln.ClosedAt,
		CreatedAt:   ln.CreatedAt,
		UpdatedAt:   ln.UpdatedAt,
	}
	if len(ln.Schedule) > 0 {
		summary := NewScheduleSummaryResponse(ln.Schedule)
		resp.Summary = &summary
		if includeSchedule {
			resp.Schedule = NewInstallmentsResponse(ln.Schedule)
		}
	}
	return resp
}

func NewLoanListResponse(loans []*loan.Loan) []LoanResponse {
	resp := make([]LoanResponse, 0, len(loans))
	for _, ln := range loans {
		resp = append(resp, NewLoanResponse(ln, false))
	}
	return resp
}

type AllocationResponse struct {
	Penalty   string `json:"penalty"`
	Fees      string `json:"fees"`
	Interest  string `json:"interest"`
	Principal string `json:"principal"`
	Total     string `json:"total"`
}

func NewAllocationResponse(a loan.PaymentAllocation) AllocationResponse {
	return AllocationResponse{
		Penalty:   Money(a.Penalty),
		Fees:      Money(a.Fees),
		Interest:  Money(a.Interest),
		Principal: Money(a.Principal),
		Total:     Money(a.Total()),
	}
}

type PaymentResponse struct {
	ID          string             `json:"id"`
	LoanID      int64              `json:"loanId"`
	Amount      string             `json:"amount"`
	Allocation  AllocationResponse `json:"allocation"`
	Unallocated string             `json:"unallocated"`
	Method      string             `json:"method"`
	Reference   string             `json:"reference,omitempty"`
	RecordedBy  string             `json:"recordedBy"`
	PaidAt      time.Time          `json:"paidAt"`
}

func NewPaymentResponse(p loan.Payment) PaymentResponse {
	return PaymentResponse{
		ID:          p.ID.String(),
		LoanID:      p.LoanID,
		Amount:      Money(p.Amount),
		Allocation:  NewAllocationResponse(p.Allocation),
		Unallocated: Money(p.Unallocated),
		Method:      string(p.Method),
		Reference:   p.Reference,
		RecordedBy:  p.RecordedBy,
		PaidAt:      p.PaidAt,
	}
}

func NewPaymentListResponse(payments []loan.Payment) []PaymentResponse {
	resp := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = NewPaymentResponse(p)
	}
	return resp
}

type PaymentReceiptResponse struct {
	Payment      PaymentResponse       `json:"payment"`
	LoanStatus   string                `json:"loanStatus"`
	Balances     BalancesResponse      `json:"balances"`
	Installments []InstallmentResponse `json:"installments"`
}

func NewPaymentReceiptResponse(r *loan.PaymentReceipt) PaymentReceiptResponse {
	return PaymentReceiptResponse{
		Payment:      NewPaymentResponse(r.Payment),
		LoanStatus:   string(r.LoanStatus),
		Balances:     NewBalancesResponse(r.Balances),
		Installments: NewInstallmentsResponse(r.Installments),
	}
}
