package interfaces

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	apihttp "residential-cloud/internal/api/http"
	"residential-cloud/internal/apperr"
	"residential-cloud/internal/billing/application"
	billing "residential-cloud/internal/billing/domain"
	"residential-cloud/internal/observability/metrics"
	"residential-cloud/internal/tenant"
)

// PlanGate evaluates plan features for a complex.
type PlanGate interface {
	Authorize(ctx context.Context, complexID int64, feature tenant.Feature) (tenant.Authorization, error)
}

// Services groups the billing application services served over HTTP.
type Services struct {
	Fees     *application.FeeService
	Bills    *application.BillService
	Payments *application.PaymentService
	LateFees *application.LateFeeService
	Reports  *application.ReportService
}

// Handler serves the billing API.
type Handler struct {
	services Services
	gate     PlanGate
	auditor  *apihttp.Auditor
	logger   *slog.Logger
}

// NewHandler constructs a billing handler.
func NewHandler(services Services, gate PlanGate, auditor *apihttp.Auditor, logger *slog.Logger) (*Handler, error) {
	if services.Fees == nil || services.Bills == nil || services.Payments == nil ||
		services.LateFees == nil || services.Reports == nil {
		return nil, errors.New("billing handler: nil service")
	}
	if gate == nil {
		return nil, errors.New("billing handler: nil plan gate")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{services: services, gate: gate, auditor: auditor, logger: logger}, nil
}

// Mount registers the billing routes.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/fees", func(r chi.Router) {
		r.Get("/", h.listFees)
		r.Post("/", h.createFee)
		r.Post("/{feeID}/amend", h.amendFee)
	})
	r.Route("/bills", func(r chi.Router) {
		r.Post("/generate", h.generateBills)
		r.Get("/", h.listBills)
		r.Get("/{billID}", h.getBill)
		r.Get("/{billID}/payments", h.listPayments)
		r.Get("/{billID}/late-fee", h.lateFee)
		r.Get("/{billID}/receipt.pdf", h.receiptPDF)
	})
	r.Post("/payments", h.createPayment)
	r.Route("/reports", func(r chi.Router) {
		r.Get("/financial", h.financialReport)
		r.Get("/financial.pdf", h.financialReportPDF)
		r.Get("/financial.xlsx", h.financialReportXLSX)
	})
}

type calculationRequest struct {
	Kind    string `json:"kind"`
	Formula string `json:"formula"`
}

type feeRequest struct {
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	BaseAmount  decimal.Decimal     `json:"baseAmount"`
	IsPerUnit   bool                `json:"isPerUnit"`
	DueDay      int                 `json:"dueDay"`
	Calculation *calculationRequest `json:"calculation,omitempty"`
}

type amendRequest struct {
	Name        *string             `json:"name,omitempty"`
	Type        *string             `json:"type,omitempty"`
	BaseAmount  *decimal.Decimal    `json:"baseAmount,omitempty"`
	IsPerUnit   *bool               `json:"isPerUnit,omitempty"`
	DueDay      *int                `json:"dueDay,omitempty"`
	Calculation *calculationRequest `json:"calculation,omitempty"`
}

type generateRequest struct {
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Period string `json:"period"`
}

type paymentRequest struct {
	BillID        string          `json:"billId"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"paymentMethod"`
	Reference     string          `json:"reference"`
}

func (h *Handler) listFees(w http.ResponseWriter, r *http.Request) {
	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	fees, err := h.services.Fees.ListActive(r.Context(), complexID)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	if fees == nil {
		fees = []billing.FeeStructure{}
	}
	apihttp.WriteJSON(w, http.StatusOK, fees)
}

func (h *Handler) createFee(w http.ResponseWriter, r *http.Request) {
	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var req feeRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	fee := billing.FeeStructure{
		Name:       req.Name,
		Type:       billing.FeeType(req.Type),
		BaseAmount: req.BaseAmount,
		IsPerUnit:  req.IsPerUnit,
		DueDay:     req.DueDay,
	}
	if req.Calculation != nil {
		fee.Calculation = billing.Calculation{
			Kind:    billing.CalculationKind(strings.ToUpper(strings.TrimSpace(req.Calculation.Kind))),
			Formula: req.Calculation.Formula,
		}
	}
	created, err := h.services.Fees.Create(r.Context(), complexID, fee)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	h.auditor.Record(r, complexID, "fee.create", "fee_structure", created.ID, map[string]any{
		"name":       created.Name,
		"type":       created.Type,
		"baseAmount": created.BaseAmount.String(),
	})
	apihttp.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) amendFee(w http.ResponseWriter, r *http.Request) {
	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	feeID := chi.URLParam(r, "feeID")
	var req amendRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	change := billing.FeeChange{
		Name:       req.Name,
		BaseAmount: req.BaseAmount,
		IsPerUnit:  req.IsPerUnit,
		DueDay:     req.DueDay,
	}
	if req.Type != nil {
		t := billing.FeeType(*req.Type)
		change.Type = &t
	}
	if req.Calculation != nil {
		change.Calculation = &billing.Calculation{
			Kind:    billing.CalculationKind(strings.ToUpper(strings.TrimSpace(req.Calculation.Kind))),
			Formula: req.Calculation.Formula,
		}
	}
	amended, err := h.services.Fees.Amend(r.Context(), complexID, feeID, change)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	h.auditor.Record(r, complexID, "fee.amend", "fee_structure", amended.ID, map[string]any{
		"supersedes": feeID,
		"baseAmount": amended.BaseAmount.String(),
	})
	apihttp.WriteJSON(w, http.StatusCreated, amended)
}

func (h *Handler) generateBills(w http.ResponseWriter, r *http.Request) {
	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var req generateRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var period billing.BillingPeriod
	if req.Period != "" {
		period, err = billing.ParsePeriod(req.Period)
	} else {
		period, err = billing.NewBillingPeriod(req.Year, req.Month)
	}
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	authz, err := h.gate.Authorize(r.Context(), complexID, tenant.FeatureBilling)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	bills, err := h.services.Bills.Generate(r.Context(), complexID, period, authz)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	h.auditor.Record(r, complexID, "bills.generate", "billing_period", period.String(), map[string]any{
		"bills": len(bills),
	})
	apihttp.WriteJSON(w, http.StatusCreated, map[string]any{
		"period": period.String(),
		"count":  len(bills),
		"bills":  bills,
	})
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	period, err := billing.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	bills, err := h.services.Bills.ListByPeriod(r.Context(), complexID, period)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	if bills == nil {
		bills = []billing.GeneratedBill{}
	}
	apihttp.WriteJSON(w, http.StatusOK, bills)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	bill, err := h.services.Bills.Get(r.Context(), complexID, chi.URLParam(r, "billID"))
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, bill)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	payments, err := h.services.Payments.ListForBill(r.Context(), complexID, chi.URLParam(r, "billID"))
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	if payments == nil {
		payments = []billing.Payment{}
	}
	apihttp.WriteJSON(w, http.StatusOK, payments)
}

func (h *Handler) lateFee(w http.ResponseWriter, r *http.Request) {
	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var asOf time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("as_of")); raw != "" {
		asOf, err = time.Parse(time.DateOnly, raw)
		if err != nil {
			apihttp.RespondError(w, apperr.Validation("as_of", "as_of must be YYYY-MM-DD"))
			return
		}
	}
	quote, err := h.services.LateFees.Quote(r.Context(), complexID, chi.URLParam(r, "billID"), asOf)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, quote)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	var req paymentRequest
	if err := apihttp.DecodeJSON(r, &req); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	method, ok := billing.NormalizePaymentMethod(req.PaymentMethod)
	if !ok {
		method = billing.PaymentMethod(req.PaymentMethod)
	}
	result, err := h.services.Payments.Process(r.Context(), complexID, billing.PaymentRequest{
		BillID:    strings.TrimSpace(req.BillID),
		Amount:    req.Amount,
		Method:    method,
		Reference: req.Reference,
	})
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	h.auditor.Record(r, complexID, "payment.create", "payment", result.Payment.ID, map[string]any{
		"billId":    result.Payment.BillID,
		"amount":    result.Payment.Amount.String(),
		"method":    result.Payment.Method,
		"fullyPaid": result.FullyPaid,
	})
	apihttp.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) financialReport(w http.ResponseWriter, r *http.Request) {
	_, summary, err := h.report(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	apihttp.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) financialReportPDF(w http.ResponseWriter, r *http.Request) {
	h.exportReport(w, r, "pdf")
}

func (h *Handler) financialReportXLSX(w http.ResponseWriter, r *http.Request) {
	h.exportReport(w, r, "xlsx")
}

func (h *Handler) exportReport(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()
	var err error
	defer func() {
		metrics.ObserveExport("financial_report", format, metrics.ResultOf(err), time.Since(start))
	}()

	complexID, summary, err := h.report(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	if err = h.requireExports(r.Context(), complexID); err != nil {
		apihttp.RespondError(w, err)
		return
	}

	var (
		data        []byte
		contentType string
	)
	switch format {
	case "pdf":
		data, err = BuildFinancialReportPDF(summary)
		contentType = "application/pdf"
	default:
		data, err = BuildFinancialReportXLSX(summary)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		h.logger.Error("financial report export failed", "complex_id", complexID, "format", format, "error", err)
		apihttp.RespondError(w, err)
		return
	}
	filename := "financial-" + summary.StartDate + "-" + summary.EndDate + "." + format
	writeAttachment(w, contentType, filename, data)
}

func (h *Handler) receiptPDF(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var err error
	defer func() {
		metrics.ObserveExport("bill_receipt", "pdf", metrics.ResultOf(err), time.Since(start))
	}()

	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	if err = h.requireExports(r.Context(), complexID); err != nil {
		apihttp.RespondError(w, err)
		return
	}
	billID := chi.URLParam(r, "billID")
	bill, err := h.services.Bills.Get(r.Context(), complexID, billID)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	payments, err := h.services.Payments.ListForBill(r.Context(), complexID, billID)
	if err != nil {
		apihttp.RespondError(w, err)
		return
	}
	data, err := BuildBillReceiptPDF(bill, payments)
	if err != nil {
		h.logger.Error("bill receipt export failed", "complex_id", complexID, "bill_id", billID, "error", err)
		apihttp.RespondError(w, err)
		return
	}
	writeAttachment(w, "application/pdf", "receipt-"+bill.ID+".pdf", data)
}

func (h *Handler) report(r *http.Request) (int64, *billing.FinancialSummary, error) {
	complexID, err := apihttp.ComplexID(r)
	if err != nil {
		return 0, nil, err
	}
	q := r.URL.Query()
	dateRange, err := billing.ParseDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		return 0, nil, err
	}
	mode, ok := billing.NormalizeReportMode(q.Get("mode"))
	if !ok {
		return 0, nil, apperr.Validation("mode", "mode must be independent or cohort")
	}
	authz, err := h.gate.Authorize(r.Context(), complexID, tenant.FeatureBilling)
	if err != nil {
		return 0, nil, err
	}
	summary, err := h.services.Reports.Report(r.Context(), complexID, dateRange, mode, authz)
	if err != nil {
		return 0, nil, err
	}
	return complexID, summary, nil
}

func (h *Handler) requireExports(ctx context.Context, complexID int64) error {
	authz, err := h.gate.Authorize(ctx, complexID, tenant.FeatureExports)
	if err != nil {
		return err
	}
	return authz.Check(complexID, tenant.FeatureExports)
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
