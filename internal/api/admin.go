package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nischald42-create/aquabank/internal/domain"
	"github.com/nischald42-create/aquabank/internal/ledger"
)

// Admin handlers. Every route here sits behind RequireRole(RoleAdmin); the
// handlers still run with the caller identity so the audit log names who
// did what.

// CreateAccountRequest provisions an account for a user.
type CreateAccountRequest struct {
	OwnerID        string `json:"owner_id"`
	Name           string `json:"name"`
	InitialDeposit string `json:"initial_deposit,omitempty"` // decimal string
}

func (h *Handler) AdminCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "malformed JSON body")
		return
	}
	if req.OwnerID == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "owner_id and name are required")
		return
	}

	var deposit int64
	if req.InitialDeposit != "" {
		var err error
		deposit, err = domain.ParseAmount(req.InitialDeposit)
		if err != nil {
			respondDomainError(w, err)
			return
		}
	}

	acc := &domain.Account{
		OwnerID:   req.OwnerID,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.CreateAccount(r.Context(), acc); err != nil {
		respondDomainError(w, err)
		return
	}
	if deposit > 0 {
		if _, err := h.engine.Deposit(r.Context(), acc.ID, deposit, "initial deposit"); err != nil {
			respondDomainError(w, err)
			return
		}
		acc.Balance = deposit
	}

	slog.Info("account created",
		"account_id", acc.ID,
		"owner_id", acc.OwnerID,
		"admin", IdentityFrom(r.Context()).UserID,
	)
	respondJSON(w, http.StatusCreated, acc)
}

func (h *Handler) AdminCloseAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.CloseAccount(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	slog.Info("account closed", "account_id", id, "admin", IdentityFrom(r.Context()).UserID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "closed", "account_id": id})
}

func (h *Handler) AdminListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListAccounts(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

// AdjustRequest is an administrative balance correction, recorded on the
// ledger as a deposit or withdrawal.
type AdjustRequest struct {
	Amount    string `json:"amount"` // decimal string, sign given by direction
	Direction string `json:"direction"`
	Memo      string `json:"memo,omitempty"`
}

func (h *Handler) AdminAdjustBalance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "malformed JSON body")
		return
	}
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	memo := req.Memo
	if memo == "" {
		memo = "administrative adjustment"
	}

	var res *ledger.TransferResult
	switch req.Direction {
	case "deposit":
		res, err = h.engine.Deposit(r.Context(), id, amount, memo)
	case "withdrawal":
		res, err = h.engine.Withdraw(r.Context(), id, amount, memo)
	default:
		respondError(w, http.StatusBadRequest, "InvalidRequest", "direction must be deposit or withdrawal")
		return
	}
	if err != nil {
		respondDomainError(w, err)
		return
	}

	slog.Info("balance adjusted",
		"account_id", id,
		"direction", req.Direction,
		"amount", domain.FormatAmount(amount),
		"admin", IdentityFrom(r.Context()).UserID,
	)
	respondJSON(w, http.StatusOK, TransferResponse{
		TransactionID: res.Transaction.ID.String(),
		Status:        string(res.Transaction.Status),
		NewBalance:    domain.FormatAmount(res.NewBalance),
	})
}

// ResetCredentialsRequest rotates a user's API token.
type ResetCredentialsRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) AdminResetCredentials(w http.ResponseWriter, r *http.Request) {
	caller := IdentityFrom(r.Context())

	var req ResetCredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "malformed JSON body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "user_id is required")
		return
	}
	// Admins rotate their own credential through the normal self-service
	// path, not this one, so a typo can't lock out the last admin.
	if req.UserID == caller.UserID {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "cannot reset your own credentials here")
		return
	}

	token, err := h.credentials.ResetToken(req.UserID)
	if err != nil {
		respondError(w, http.StatusNotFound, "UserNotFound", "user not found")
		return
	}
	slog.Info("credentials reset", "user_id", req.UserID, "admin", caller.UserID)
	respondJSON(w, http.StatusOK, map[string]string{"user_id": req.UserID, "token": token})
}
