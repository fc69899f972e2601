package bank_http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.OpenAccountHandler)
		r.Get("/{id}/balance", h.GetBalanceHandler)
		r.Post("/{id}/block", h.BlockAccountHandler)
		r.Post("/{id}/close", h.CloseAccountHandler)
		r.Get("/{id}/transactions", h.ListAccountTransactionsHandler)
		r.Get("/{id}/daily-total", h.DailyTotalHandler)
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.CreateTransactionHandler)
		r.Get("/{id}", h.GetTransactionHandler)
	})

	r.Route("/loans", func(r chi.Router) {
		r.Post("/", h.ApplyLoanHandler)
		r.Get("/{id}", h.GetLoanHandler)
		r.Post("/{id}/approve", h.ApproveLoanHandler)
		r.Post("/{id}/reject", h.RejectLoanHandler)
		r.Post("/{id}/activate", h.ActivateLoanHandler)
		r.Post("/{id}/payments", h.LoanPaymentHandler)
	})

	r.Route("/invoices", func(r chi.Router) {
		r.Post("/", h.CreateInvoiceHandler)
		r.Get("/{id}", h.GetInvoiceHandler)
		r.Post("/{id}/pay", h.PayInvoiceHandler)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/{id}/loans", h.ListUserLoansHandler)
		r.Get("/{id}/invoices", h.ListUserInvoicesHandler)
	})

	return r
}
