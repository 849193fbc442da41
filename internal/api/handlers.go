/**
 * @description
 * HTTP handlers for the provisioning endpoints and the customer read API.
 * Handlers only translate between HTTP and the application layer; every
 * provisioning decision lives in internal/app.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/harborbank/backoffice/internal/app"
	"github.com/harborbank/backoffice/internal/domain"
	"github.com/harborbank/backoffice/internal/store"
)

// ProvisioningService is the slice of the application layer the handlers use.
type ProvisioningService interface {
	Provision(ctx context.Context, req domain.ProvisionRequest) (*domain.ProvisionResult, error)
}

// ProvisionHandler serves signup and admin-initiated customer creation.
type ProvisionHandler struct {
	service ProvisioningService
}

// NewProvisionHandler creates a new ProvisionHandler.
func NewProvisionHandler(service ProvisioningService) *ProvisionHandler {
	return &ProvisionHandler{service: service}
}

// CreateCustomer handles POST /signup and POST /admin/customers.
func (h *ProvisionHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	result, err := h.service.Provision(r.Context(), req)
	if err != nil {
		writeProvisionError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// CustomerHandler serves the back-office customer read API.
type CustomerHandler struct {
	profiles store.ProfileRepository
	accounts store.AccountRepository
	cards    store.CardRepository
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(profiles store.ProfileRepository, accounts store.AccountRepository, cards store.CardRepository) *CustomerHandler {
	return &CustomerHandler{profiles: profiles, accounts: accounts, cards: cards}
}

// customerResponse is the read-model returned to the back-office UI.
type customerResponse struct {
	User    domain.User     `json:"user"`
	Account *domain.Account `json:"account,omitempty"`
	Cards   []domain.Card   `json:"cards,omitempty"`
}

// GetCustomer handles GET /admin/customers/{id}.
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	profile, err := h.profiles.GetProfile(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "No customer with that id")
			return
		}
		log.Printf("ERROR: Failed to load profile %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "internal", "Could not load customer")
		return
	}

	resp := customerResponse{User: buildUser(profile, nil)}

	account, err := h.accounts.GetAccountByProfile(r.Context(), profile.ID)
	if err == nil {
		resp.Account = account
		resp.User = buildUser(profile, []string{account.ID})
		if cards, cerr := h.cards.GetCardsByAccount(r.Context(), account.ID); cerr == nil {
			resp.Cards = cards
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("ERROR: Failed to load account for profile %s: %v", profile.ID, err)
	}

	writeJSON(w, http.StatusOK, resp)
}

// buildUser wraps a profile in the role-tagged user variant. The switch is
// exhaustive over domain.Role.
func buildUser(profile *domain.Profile, accountIDs []string) domain.User {
	user := domain.User{Profile: *profile, Role: profile.Role}
	switch profile.Role {
	case domain.RoleCustomer:
		user.Customer = &domain.CustomerData{AccountIDs: accountIDs}
	case domain.RoleTeller:
		user.Teller = &domain.TellerData{}
	case domain.RoleAdmin:
		user.Admin = &domain.AdminData{}
	}
	return user
}

// errorResponse is the single failure shape returned to the UI. ErrorKind is
// enough for the client to pick between "fix your input", "try again" and
// "contact support".
type errorResponse struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

func writeProvisionError(w http.ResponseWriter, err error) {
	var perr *app.ProvisionError
	if !errors.As(err, &perr) {
		log.Printf("ERROR: Provisioning returned an untyped error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal", "Internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch perr.Kind {
	case app.KindIdentityDuplicate:
		status = http.StatusConflict
	case app.KindIdentityInvalid:
		status = http.StatusBadRequest
	case app.KindIdentityUnavailable:
		status = http.StatusServiceUnavailable
	case app.KindProfileSchemaMissing, app.KindProfileFailed, app.KindAccountCreationFailed:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		log.Printf("ERROR: Provisioning failed (%s): %v", perr.Kind, perr)
	}
	writeError(w, status, string(perr.Kind), perr.Message)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{ErrorKind: kind, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Error encoding response body: %v", err)
	}
}
