package bank_http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bankcore/internal/app/invoices"
	"bankcore/internal/app/ledger"
	"bankcore/internal/app/loans"
	"bankcore/internal/app/transactions"
	"bankcore/internal/domain"
)

// Handler is a thin HTTP adapter: decode, delegate to a service, encode.
// All domain logic and validation lives in the services.
type Handler struct {
	ledger       ledger.LedgerService
	transactions transactions.TransactionService
	loans        loans.LoanService
	invoices     invoices.InvoiceService
	logger       *zap.Logger
}

func NewHandler(
	ledgerSvc ledger.LedgerService,
	transactionSvc transactions.TransactionService,
	loanSvc loans.LoanService,
	invoiceSvc invoices.InvoiceService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		ledger:       ledgerSvc,
		transactions: transactionSvc,
		loans:        loanSvc,
		invoices:     invoiceSvc,
		logger:       logger,
	}
}

type OpenAccountRequest struct {
	UserID         string          `json:"user_id"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type CreateTransactionRequest struct {
	SourceAccountID      string          `json:"source_account_id"`
	DestinationAccountID string          `json:"destination_account_id"`
	Amount               decimal.Decimal `json:"amount"`
	Type                 string          `json:"type"`
}

type ApplyLoanRequest struct {
	UserID     string          `json:"user_id"`
	Principal  decimal.Decimal `json:"principal"`
	TermMonths int             `json:"term_months"`
}

type LoanPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type CreateInvoiceRequest struct {
	UserID    string          `json:"user_id"`
	AmountDue decimal.Decimal `json:"amount_due"`
	DueDate   time.Time       `json:"due_date"`
}

type BalanceResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

type DailyTotalResponse struct {
	AccountID string          `json:"account_id"`
	Date      string          `json:"date"`
	Total     decimal.Decimal `json:"total"`
}

func (h *Handler) OpenAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req OpenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "User ID is required", http.StatusBadRequest)
		return
	}

	account, err := h.ledger.Open(r.Context(), req.UserID, req.InitialBalance)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

func (h *Handler) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	balance, err := h.ledger.GetBalance(r.Context(), accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceResponse{AccountID: accountID, Balance: balance})
}

func (h *Handler) BlockAccountHandler(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.Block(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

func (h *Handler) CloseAccountHandler(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.CloseAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

func (h *Handler) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tx, err := h.transactions.CreateAndProcess(r.Context(), transactions.CreateRequest{
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
		Type:                 domain.TransactionType(req.Type),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	tx, err := h.transactions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tx)
}

func (h *Handler) ListAccountTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := h.transactions.ListByAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) DailyTotalHandler(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	day := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			http.Error(w, "Invalid date format, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = parsed
	}

	total, err := h.transactions.DailyTotal(r.Context(), accountID, day)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DailyTotalResponse{
		AccountID: accountID,
		Date:      day.Format("2006-01-02"),
		Total:     total,
	})
}

func (h *Handler) ApplyLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req ApplyLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	loan, err := h.loans.Apply(r.Context(), loans.ApplyRequest{
		UserID:     req.UserID,
		Principal:  req.Principal,
		TermMonths: req.TermMonths,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, loan)
}

func (h *Handler) ApproveLoanHandler(w http.ResponseWriter, r *http.Request) {
	h.loanTransition(w, r, h.loans.Approve)
}

func (h *Handler) RejectLoanHandler(w http.ResponseWriter, r *http.Request) {
	h.loanTransition(w, r, h.loans.Reject)
}

func (h *Handler) ActivateLoanHandler(w http.ResponseWriter, r *http.Request) {
	h.loanTransition(w, r, h.loans.Activate)
}

func (h *Handler) loanTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, loanID string) (*domain.Loan, error)) {
	loan, err := op(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) LoanPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req LoanPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	loan, err := h.loans.ApplyPayment(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) GetLoanHandler(w http.ResponseWriter, r *http.Request) {
	loan, err := h.loans.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loan)
}

func (h *Handler) ListUserLoansHandler(w http.ResponseWriter, r *http.Request) {
	userLoans, err := h.loans.ListByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, userLoans)
}

func (h *Handler) CreateInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	invoice, err := h.invoices.Create(r.Context(), invoices.CreateRequest{
		UserID:    req.UserID,
		AmountDue: req.AmountDue,
		DueDate:   req.DueDate,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, invoice)
}

func (h *Handler) PayInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.invoices.Pay(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoice)
}

func (h *Handler) GetInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.invoices.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, invoice)
}

func (h *Handler) ListUserInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	userInvoices, err := h.invoices.ListByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, userInvoices)
}

type errorResponse struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons,omitempty"`
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var eligErr *domain.EligibilityError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrSameAccount), errors.Is(err, domain.ErrInvalidAmount):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrAccountNotActive),
		errors.Is(err, domain.ErrInvalidState):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.As(err, &eligErr):
		h.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "loan eligibility failed",
			Reasons: eligErr.Reasons,
		})
	case domain.IsTransient(err):
		h.logger.Error("Transient storage error", zap.Error(err))
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "temporary storage error, retry later"})
	default:
		h.logger.Error("Unhandled error", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write JSON response", zap.Error(err))
	}
}
