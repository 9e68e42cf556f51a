// Package api exposes the ledger over HTTP: transfer execution, dashboard
// reads, and the admin surface. Handlers translate between the JSON wire
// format and the domain, and map domain errors onto statuses.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nischald42-create/aquabank/internal/auth"
	"github.com/nischald42-create/aquabank/internal/domain"
	"github.com/nischald42-create/aquabank/internal/ledger"
	"github.com/nischald42-create/aquabank/internal/query"
	"github.com/nischald42-create/aquabank/internal/store"
)

// Handler carries the service dependencies for every route.
type Handler struct {
	engine      *ledger.Engine
	query       *query.Service
	store       store.Store
	credentials *auth.Registry
}

func NewHandler(e *ledger.Engine, q *query.Service, s store.Store, creds *auth.Registry) *Handler {
	return &Handler{engine: e, query: q, store: s, credentials: creds}
}

// TransferRequest is the wire payload for POST /api/v1/transfers.
type TransferRequest struct {
	FromAccountID    string `json:"from_account_id"`
	ToIdentifier     string `json:"to_identifier"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Memo             string `json:"memo,omitempty"`
}

// TransferResponse is returned on success.
type TransferResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	NewBalance    string `json:"new_balance"`
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFrom(r.Context())

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "malformed JSON body")
		return
	}
	if req.FromAccountID == "" || req.ToIdentifier == "" {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "from_account_id and to_identifier are required")
		return
	}

	// Admins act as tellers and may move funds from any account; everyone
	// else only from accounts they own.
	callerID := caller.UserID
	if caller.HasRole(auth.RoleAdmin) {
		callerID = ""
	}

	res, err := h.engine.Transfer(r.Context(), callerID, ledger.TransferRequest{
		FromAccountID: req.FromAccountID,
		ToIdentifier:  req.ToIdentifier,
		Amount:        req.AmountMinorUnits,
		Memo:          req.Memo,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, TransferResponse{
		TransactionID: res.Transaction.ID.String(),
		Status:        string(res.Transaction.Status),
		NewBalance:    domain.FormatAmount(res.NewBalance),
	})
}

// ListAccounts returns the caller's own accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFrom(r.Context())
	accounts, err := h.query.AccountsByOwner(r.Context(), caller.UserID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

// accountForCaller loads the account and enforces owner-or-admin access.
// Non-owners get a 404 rather than a 403 so account numbers stay private.
func (h *Handler) accountForCaller(r *http.Request) (*domain.Account, error) {
	caller := IdentityFrom(r.Context())
	acc, err := h.query.Account(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return nil, err
	}
	if acc.OwnerID != caller.UserID && !caller.HasRole(auth.RoleAdmin) {
		return nil, domain.ErrAccountNotFound
	}
	return acc, nil
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accountForCaller(r)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, acc)
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accountForCaller(r)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	f := store.TransactionFilter{AccountID: acc.ID}
	qp := r.URL.Query()
	if v := qp.Get("type"); v != "" {
		f.Type = domain.TransactionType(v)
	}
	if v := qp.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "InvalidRequest", "from must be RFC3339")
			return
		}
		f.From = t
	}
	if v := qp.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "InvalidRequest", "to must be RFC3339")
			return
		}
		f.To = t
	}

	txns, err := h.query.History(r.Context(), f)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if txns == nil {
		txns = []*domain.Transaction{}
	}
	respondJSON(w, http.StatusOK, txns)
}

func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accountForCaller(r)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	qp := r.URL.Query()
	from, err := time.Parse("2006-01-02", qp.Get("from"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", qp.Get("to"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "to must be YYYY-MM-DD")
		return
	}

	text, err := h.query.Statement(r.Context(), acc.ID, from, to)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text))
}

func (h *Handler) GetPaymentCode(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accountForCaller(r)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	var amount int64
	if v := r.URL.Query().Get("amount"); v != "" {
		amount, err = domain.ParseAmount(v)
		if err != nil {
			respondDomainError(w, err)
			return
		}
	}
	code, err := h.query.PaymentCode(r.Context(), acc.ID, amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"payment_code": code})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, code int, kind, message string) {
	respondJSON(w, code, map[string]string{"error_kind": kind, "message": message})
}

// respondDomainError maps the domain taxonomy onto HTTP statuses.
func respondDomainError(w http.ResponseWriter, err error) {
	kind := domain.ErrorKind(err)
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrSameAccount):
		respondError(w, http.StatusUnprocessableEntity, kind, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		respondError(w, http.StatusUnprocessableEntity, kind, "insufficient funds for this transfer")
	case errors.Is(err, domain.ErrRecipientNotFound):
		respondError(w, http.StatusUnprocessableEntity, kind, "recipient could not be resolved")
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, kind, "the account was busy, please try again")
	case errors.Is(err, domain.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, kind, "account not found")
	case errors.Is(err, domain.ErrTransactionNotFound):
		respondError(w, http.StatusNotFound, "TransactionNotFound", "transaction not found")
	case errors.Is(err, domain.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, kind, "store unavailable, please retry later")
	default:
		respondError(w, http.StatusInternalServerError, "Internal", "internal server error")
	}
}
