package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/harborbank/backoffice/internal/app"
	"github.com/harborbank/backoffice/internal/domain"
	"github.com/harborbank/backoffice/internal/store"
)

type provisioningServiceStub struct {
	result *domain.ProvisionResult
	err    error
	last   domain.ProvisionRequest
}

func (s *provisioningServiceStub) Provision(ctx context.Context, req domain.ProvisionRequest) (*domain.ProvisionResult, error) {
	s.last = req
	return s.result, s.err
}

func TestCreateCustomer_Success(t *testing.T) {
	service := &provisioningServiceStub{
		result: &domain.ProvisionResult{
			Profile: &domain.Profile{ID: "id-1", Email: "a@b.com", Role: domain.RoleCustomer},
			Account: &domain.Account{ID: "acct-1", ProfileID: "id-1", AccountNumber: "2225", Balance: 500, AvailableBalance: 500},
		},
	}
	handler := NewProvisionHandler(service)

	body := `{"email":"a@b.com","password":"Secret123","display_name":"Jane Doe","initial_balance":500}`
	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.CreateCustomer(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if service.last.Email != "a@b.com" || service.last.InitialBalance != 500 {
		t.Errorf("request not passed through: %+v", service.last)
	}
	var result domain.ProvisionResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if result.Account.Balance != 500 {
		t.Errorf("expected balance 500 in response, got %d", result.Account.Balance)
	}
}

func TestCreateCustomer_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		kind       app.ErrorKind
		wantStatus int
	}{
		{"duplicate email", app.KindIdentityDuplicate, http.StatusConflict},
		{"invalid input", app.KindIdentityInvalid, http.StatusBadRequest},
		{"identity outage", app.KindIdentityUnavailable, http.StatusServiceUnavailable},
		{"profile failed", app.KindProfileFailed, http.StatusInternalServerError},
		{"schema missing", app.KindProfileSchemaMissing, http.StatusInternalServerError},
		{"account failed", app.KindAccountCreationFailed, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &provisioningServiceStub{
				err: &app.ProvisionError{Kind: tc.kind, Message: "boom"},
			}
			handler := NewProvisionHandler(service)

			req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"a@b.com"}`))
			rec := httptest.NewRecorder()
			handler.CreateCustomer(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if resp.ErrorKind != string(tc.kind) {
				t.Errorf("expected error_kind %s, got %s", tc.kind, resp.ErrorKind)
			}
		})
	}
}

func TestCreateCustomer_RejectsMalformedBody(t *testing.T) {
	handler := NewProvisionHandler(&provisioningServiceStub{})

	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	handler.CreateCustomer(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

type profileReaderStub struct {
	profile *domain.Profile
}

func (s *profileReaderStub) InsertProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	return profile, nil
}

func (s *profileReaderStub) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	if s.profile == nil || s.profile.ID != id {
		return nil, store.ErrNotFound
	}
	return s.profile, nil
}

type accountReaderStub struct {
	account *domain.Account
}

func (s *accountReaderStub) InsertAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	return account, nil
}

func (s *accountReaderStub) UpdateBalance(ctx context.Context, accountID string, balance, available int64) (*domain.Account, error) {
	return s.account, nil
}

func (s *accountReaderStub) GetAccountByProfile(ctx context.Context, profileID string) (*domain.Account, error) {
	if s.account == nil {
		return nil, store.ErrNotFound
	}
	return s.account, nil
}

func (s *accountReaderStub) DeleteAccount(ctx context.Context, accountID string) error {
	return nil
}

func (s *accountReaderStub) FindProfilesMissingAccounts(ctx context.Context, limit int) ([]domain.Profile, error) {
	return nil, nil
}

type cardReaderStub struct {
	cards []domain.Card
}

func (s *cardReaderStub) InsertCard(ctx context.Context, card *domain.Card) (*domain.Card, error) {
	return card, nil
}

func (s *cardReaderStub) GetCardsByAccount(ctx context.Context, accountID string) ([]domain.Card, error) {
	return s.cards, nil
}

func getCustomer(handler *CustomerHandler, id string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/admin/customers/{id}", handler.GetCustomer)
	req := httptest.NewRequest(http.MethodGet, "/admin/customers/"+id, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetCustomer_ReturnsTaggedUser(t *testing.T) {
	handler := NewCustomerHandler(
		&profileReaderStub{profile: &domain.Profile{ID: "id-1", Email: "a@b.com", Role: domain.RoleCustomer}},
		&accountReaderStub{account: &domain.Account{ID: "acct-1", ProfileID: "id-1", AccountNumber: "2240"}},
		&cardReaderStub{cards: []domain.Card{{ID: "card-1", AccountID: "acct-1"}}},
	)

	rec := getCustomer(handler, "id-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp customerResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp.User.Role != domain.RoleCustomer || resp.User.Customer == nil {
		t.Error("expected the customer payload on a customer profile")
	}
	if resp.User.Teller != nil || resp.User.Admin != nil {
		t.Error("expected exactly one role payload")
	}
	if resp.Account == nil || resp.Account.ID != "acct-1" {
		t.Error("expected the primary account in the response")
	}
	if len(resp.Cards) != 1 {
		t.Errorf("expected one card, got %d", len(resp.Cards))
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	handler := NewCustomerHandler(&profileReaderStub{}, &accountReaderStub{}, &cardReaderStub{})

	rec := getCustomer(handler, "missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
