package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/harborbank/backoffice/internal/domain"
	"github.com/harborbank/backoffice/internal/store"
	"github.com/harborbank/backoffice/pkg/cardclient"
	"github.com/harborbank/backoffice/pkg/identityclient"
)

type identityProviderStub struct {
	createErr   error
	createCalls int
	deleteCalls int
	deletedID   string
	id          string
	honorCtx    bool // fail on a done context, like a real HTTP client would
}

func (s *identityProviderStub) CreateIdentity(ctx context.Context, email, password string, metadata map[string]string) (*identityclient.Identity, error) {
	s.createCalls++
	if s.honorCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.createErr != nil {
		return nil, s.createErr
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	return &identityclient.Identity{ID: s.id, Email: email}, nil
}

func (s *identityProviderStub) DeleteIdentity(ctx context.Context, id string) error {
	s.deleteCalls++
	s.deletedID = id
	return nil
}

type profileRepoStub struct {
	insertErr   error
	insertCalls int
	existing    *domain.Profile
	inserted    *domain.Profile
	honorCtx    bool
}

func (s *profileRepoStub) InsertProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	s.insertCalls++
	if s.honorCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	stored := *profile
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	s.inserted = &stored
	return &stored, nil
}

func (s *profileRepoStub) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	if s.existing != nil && s.existing.ID == id {
		return s.existing, nil
	}
	return nil, store.ErrNotFound
}

type accountRepoStub struct {
	insertErrs    []error // consumed per insert call; nil entry means success
	insertCalls   int
	storedBalance *int64 // simulates the store coercing the inserted balance
	updateCalls   int
	updateErr     error
	existing      *domain.Account
	lastInserted  *domain.Account
	orphans       []domain.Profile
	deleteCalls   int
	deletedIDs    []string
	deleteErr     error
	honorCtx      bool
}

func (s *accountRepoStub) InsertAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	idx := s.insertCalls
	s.insertCalls++
	if s.honorCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if idx < len(s.insertErrs) && s.insertErrs[idx] != nil {
		return nil, s.insertErrs[idx]
	}
	stored := *account
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if s.storedBalance != nil {
		stored.Balance = *s.storedBalance
		stored.AvailableBalance = *s.storedBalance
	}
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	s.lastInserted = &stored
	return &stored, nil
}

func (s *accountRepoStub) UpdateBalance(ctx context.Context, accountID string, balance, available int64) (*domain.Account, error) {
	s.updateCalls++
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	updated := *s.lastInserted
	updated.Balance = balance
	updated.AvailableBalance = available
	return &updated, nil
}

func (s *accountRepoStub) GetAccountByProfile(ctx context.Context, profileID string) (*domain.Account, error) {
	if s.existing != nil && s.existing.ProfileID == profileID {
		return s.existing, nil
	}
	return nil, store.ErrNotFound
}

func (s *accountRepoStub) DeleteAccount(ctx context.Context, accountID string) error {
	s.deleteCalls++
	s.deletedIDs = append(s.deletedIDs, accountID)
	return s.deleteErr
}

func (s *accountRepoStub) FindProfilesMissingAccounts(ctx context.Context, limit int) ([]domain.Profile, error) {
	return s.orphans, nil
}

type cardRepoStub struct {
	insertErr error
	inserted  []domain.Card
}

func (s *cardRepoStub) InsertCard(ctx context.Context, card *domain.Card) (*domain.Card, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	stored := *card
	stored.CreatedAt = time.Now()
	s.inserted = append(s.inserted, stored)
	return &stored, nil
}

func (s *cardRepoStub) GetCardsByAccount(ctx context.Context, accountID string) ([]domain.Card, error) {
	return s.inserted, nil
}

type cardIssuerStub struct {
	err   error
	calls int
}

func (s *cardIssuerStub) IssueCard(ctx context.Context, accountID string) (*cardclient.IssuedCard, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &cardclient.IssuedCard{
		ID:         uuid.NewString(),
		AccountID:  accountID,
		CardNumber: "4111111111111111",
		ExpiryDate: "12/29",
		CVV:        "123",
		Status:     "active",
	}, nil
}

type publisherStub struct {
	routingKeys []string
}

func (s *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	s.routingKeys = append(s.routingKeys, routingKey)
	return nil
}

type fixture struct {
	idp       *identityProviderStub
	profiles  *profileRepoStub
	accounts  *accountRepoStub
	cards     *cardRepoStub
	issuer    *cardIssuerStub
	publisher *publisherStub
	prov      *Provisioner
}

func newFixture() *fixture {
	f := &fixture{
		idp:       &identityProviderStub{},
		profiles:  &profileRepoStub{},
		accounts:  &accountRepoStub{},
		cards:     &cardRepoStub{},
		issuer:    &cardIssuerStub{},
		publisher: &publisherStub{},
	}
	f.prov = NewProvisioner(f.profiles, f.accounts, f.cards, f.idp, f.issuer, f.publisher)
	return f
}

func validRequest() domain.ProvisionRequest {
	return domain.ProvisionRequest{
		Email:          "a@b.com",
		Password:       "Secret123",
		DisplayName:    "Jane Doe",
		InitialBalance: 500,
	}
}

func provisionKind(t *testing.T, err error) ErrorKind {
	t.Helper()
	var perr *ProvisionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProvisionError, got %T: %v", err, err)
	}
	return perr.Kind
}

func TestProvision_HappyPath(t *testing.T) {
	f := newFixture()

	result, err := f.prov.Provision(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Profile.Email != "a@b.com" {
		t.Errorf("expected profile email a@b.com, got %q", result.Profile.Email)
	}
	if result.Profile.ID != f.idp.id {
		t.Errorf("profile id %q does not equal identity id %q", result.Profile.ID, f.idp.id)
	}
	if result.Profile.Role != domain.RoleCustomer {
		t.Errorf("expected customer role, got %q", result.Profile.Role)
	}
	if result.Account.Balance != 500 || result.Account.AvailableBalance != 500 {
		t.Errorf("expected balance 500/500, got %d/%d", result.Account.Balance, result.Account.AvailableBalance)
	}
	if result.Account.AccountNumber == "" {
		t.Error("expected a generated account number")
	}
	if result.Account.Type != domain.CheckingAccount {
		t.Errorf("expected default checking account, got %q", result.Account.Type)
	}
	if result.Card == nil {
		t.Fatal("expected a card on the happy path")
	}
	if f.accounts.updateCalls != 0 {
		t.Errorf("expected no corrective balance update, got %d", f.accounts.updateCalls)
	}
	if len(f.publisher.routingKeys) != 1 || f.publisher.routingKeys[0] != "customer.provisioned" {
		t.Errorf("expected one customer.provisioned event, got %v", f.publisher.routingKeys)
	}
}

func TestProvision_BalanceSelfHeal(t *testing.T) {
	f := newFixture()
	coerced := int64(0)
	f.accounts.storedBalance = &coerced

	result, err := f.prov.Provision(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if f.accounts.updateCalls != 1 {
		t.Fatalf("expected exactly one corrective update, got %d", f.accounts.updateCalls)
	}
	if result.Account.Balance != 500 || result.Account.AvailableBalance != 500 {
		t.Errorf("expected corrected balance 500/500, got %d/%d", result.Account.Balance, result.Account.AvailableBalance)
	}
}

func TestProvision_BalanceCorrectionFailureIsFatal(t *testing.T) {
	f := newFixture()
	coerced := int64(499)
	f.accounts.storedBalance = &coerced
	f.accounts.updateErr = errors.New("write timeout")

	_, err := f.prov.Provision(context.Background(), validRequest())
	if kind := provisionKind(t, err); kind != KindAccountCreationFailed {
		t.Errorf("expected %s, got %s", KindAccountCreationFailed, kind)
	}
}

func TestProvision_DuplicateEmail(t *testing.T) {
	f := newFixture()
	f.idp.createErr = identityclient.ErrDuplicateEmail

	_, err := f.prov.Provision(context.Background(), validRequest())
	if kind := provisionKind(t, err); kind != KindIdentityDuplicate {
		t.Errorf("expected %s, got %s", KindIdentityDuplicate, kind)
	}
	if f.profiles.insertCalls != 0 || f.accounts.insertCalls != 0 {
		t.Errorf("expected no inserts after identity failure, got %d profile / %d account",
			f.profiles.insertCalls, f.accounts.insertCalls)
	}
	if f.idp.deleteCalls != 0 {
		t.Errorf("no compensation expected before any side effect, got %d deletes", f.idp.deleteCalls)
	}
}

func TestProvision_ProfileFailureCompensatesIdentity(t *testing.T) {
	f := newFixture()
	f.profiles.insertErr = fmt.Errorf("insert profile: %w", store.ErrConstraint)

	_, err := f.prov.Provision(context.Background(), validRequest())
	if kind := provisionKind(t, err); kind != KindProfileFailed {
		t.Errorf("expected %s, got %s", KindProfileFailed, kind)
	}
	if f.idp.deleteCalls != 1 {
		t.Fatalf("expected one compensating identity delete, got %d", f.idp.deleteCalls)
	}
	if f.idp.deletedID != f.idp.id {
		t.Errorf("compensated wrong identity: deleted %q, created %q", f.idp.deletedID, f.idp.id)
	}
	// Both concurrent operations must have been attempted before compensating.
	if f.accounts.insertCalls != 1 {
		t.Errorf("expected the account insert to be attempted, got %d calls", f.accounts.insertCalls)
	}
}

func TestProvision_SchemaMissingCompensatesIdentity(t *testing.T) {
	f := newFixture()
	f.profiles.insertErr = fmt.Errorf("insert profile: %w", store.ErrSchemaMissing)

	_, err := f.prov.Provision(context.Background(), validRequest())
	if kind := provisionKind(t, err); kind != KindProfileSchemaMissing {
		t.Errorf("expected %s, got %s", KindProfileSchemaMissing, kind)
	}
	if f.idp.deleteCalls != 1 {
		t.Fatalf("expected the identity to be deleted, got %d deletes", f.idp.deleteCalls)
	}
}

func TestProvision_AccountRetrySucceeds(t *testing.T) {
	f := newFixture()
	f.accounts.insertErrs = []error{errors.New("connection reset")}

	result, err := f.prov.Provision(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if f.accounts.insertCalls != 2 {
		t.Errorf("expected exactly two insert attempts, got %d", f.accounts.insertCalls)
	}
	if result.Account == nil || result.Account.Balance != 500 {
		t.Error("expected the retried account in the result")
	}
}

func TestProvision_AccountRetryUsesFreshNumber(t *testing.T) {
	f := newFixture()
	f.accounts.insertErrs = []error{fmt.Errorf("insert account: %w", store.ErrDuplicate)}

	var numbers []string
	f.prov.generateAccountNumber = func() string {
		numbers = append(numbers, GenerateAccountNumber())
		return numbers[len(numbers)-1]
	}

	if _, err := f.prov.Provision(context.Background(), validRequest()); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if len(numbers) != 2 {
		t.Fatalf("expected a fresh number per attempt, generator called %d time(s)", len(numbers))
	}
	if numbers[0] == numbers[1] {
		t.Error("retry reused the colliding account number")
	}
}

func TestProvision_AccountRetryExhausted(t *testing.T) {
	f := newFixture()
	f.accounts.insertErrs = []error{errors.New("down"), errors.New("still down")}

	_, err := f.prov.Provision(context.Background(), validRequest())
	if kind := provisionKind(t, err); kind != KindAccountCreationFailed {
		t.Errorf("expected %s, got %s", KindAccountCreationFailed, kind)
	}
	// Profile and identity are deliberately left intact.
	if f.idp.deleteCalls != 0 {
		t.Errorf("expected no compensation after account failure, got %d deletes", f.idp.deleteCalls)
	}
	if f.profiles.inserted == nil {
		t.Error("expected the profile to remain")
	}
	if f.accounts.insertCalls != 2 {
		t.Errorf("expected exactly one retry, got %d insert attempts", f.accounts.insertCalls)
	}
}

func TestProvision_IdempotentReentry(t *testing.T) {
	f := newFixture()
	f.idp.id = "identity-1"
	f.profiles.insertErr = fmt.Errorf("insert profile: %w", store.ErrDuplicate)
	f.profiles.existing = &domain.Profile{ID: "identity-1", Email: "a@b.com", Role: domain.RoleCustomer}
	f.accounts.existing = &domain.Account{ID: "acct-1", ProfileID: "identity-1", AccountNumber: "221234", Balance: 500, AvailableBalance: 500}

	result, err := f.prov.Provision(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("expected re-entry to succeed, got %v", err)
	}
	if result.Profile.ID != "identity-1" || result.Account.ID != "acct-1" {
		t.Errorf("expected the existing pair, got profile %q account %q", result.Profile.ID, result.Account.ID)
	}
	if f.idp.deleteCalls != 0 {
		t.Errorf("re-entry must not compensate the identity, got %d deletes", f.idp.deleteCalls)
	}
	if len(f.publisher.routingKeys) != 0 {
		t.Errorf("re-entry must not publish a second event, got %v", f.publisher.routingKeys)
	}
	// The concurrent insert landed a second row next to the prior account;
	// re-entry must remove it so the ledger never grows.
	if f.accounts.insertCalls != 1 {
		t.Fatalf("expected the concurrent insert to run once, got %d", f.accounts.insertCalls)
	}
	if f.accounts.deleteCalls != 1 {
		t.Fatalf("expected the duplicate account to be deleted, got %d deletes", f.accounts.deleteCalls)
	}
	if f.accounts.deletedIDs[0] != f.accounts.lastInserted.ID {
		t.Errorf("deleted account %q, but this run inserted %q", f.accounts.deletedIDs[0], f.accounts.lastInserted.ID)
	}
}

func TestProvision_ReentryWithoutAccountFallsThrough(t *testing.T) {
	f := newFixture()
	f.idp.id = "identity-2"
	f.profiles.insertErr = fmt.Errorf("insert profile: %w", store.ErrDuplicate)
	f.profiles.existing = &domain.Profile{ID: "identity-2", Email: "a@b.com", Role: domain.RoleCustomer}
	// Account insert in this run succeeds, so the existing profile gets its
	// account created now.
	result, err := f.prov.Provision(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("expected fall-through to succeed, got %v", err)
	}
	if result.Profile.ID != "identity-2" {
		t.Errorf("expected existing profile, got %q", result.Profile.ID)
	}
	if result.Account == nil || result.Account.ProfileID != "identity-2" {
		t.Error("expected an account bound to the existing profile")
	}
	if f.accounts.deleteCalls != 0 {
		t.Errorf("nothing to compensate when no prior account exists, got %d deletes", f.accounts.deleteCalls)
	}
	// The account was created in this run, so downstream consumers must hear
	// about it even though the profile came from a prior run.
	if len(f.publisher.routingKeys) != 1 || f.publisher.routingKeys[0] != "customer.provisioned" {
		t.Errorf("expected one customer.provisioned event, got %v", f.publisher.routingKeys)
	}
}

func TestProvision_SurvivesCallerCancellation(t *testing.T) {
	f := newFixture()
	f.idp.honorCtx = true
	f.profiles.honorCtx = true
	f.accounts.honorCtx = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // the caller is already gone before the flow starts

	result, err := f.prov.Provision(ctx, validRequest())
	if err != nil {
		t.Fatalf("an abandoned caller must not abort provisioning, got %v", err)
	}
	if result.Account == nil || result.Account.Balance != 500 {
		t.Error("expected a fully provisioned account")
	}
	if f.idp.deleteCalls != 0 {
		t.Errorf("expected no compensation, got %d identity deletes", f.idp.deleteCalls)
	}
	if f.accounts.insertCalls != 1 {
		t.Errorf("expected a single account insert, got %d", f.accounts.insertCalls)
	}
}

func TestProvision_CardIssuerDownStillSucceeds(t *testing.T) {
	f := newFixture()
	f.issuer.err = errors.New("card issuer unreachable")

	result, err := f.prov.Provision(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("card failure must not fail provisioning, got %v", err)
	}
	if result.Card != nil {
		t.Error("expected no card in the result")
	}
	if f.issuer.calls != 1 {
		t.Errorf("expected one issuance attempt, got %d", f.issuer.calls)
	}
}

func TestProvision_CardPersistFailureStillSucceeds(t *testing.T) {
	f := newFixture()
	f.cards.insertErr = fmt.Errorf("insert card: %w", store.ErrConstraint)

	result, err := f.prov.Provision(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("card persistence failure must not fail provisioning, got %v", err)
	}
	if result.Card != nil {
		t.Error("expected no card in the result")
	}
}

func TestProvision_ValidationRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.ProvisionRequest)
	}{
		{"missing email", func(r *domain.ProvisionRequest) { r.Email = "" }},
		{"malformed email", func(r *domain.ProvisionRequest) { r.Email = "not-an-email" }},
		{"missing password", func(r *domain.ProvisionRequest) { r.Password = "" }},
		{"missing display name", func(r *domain.ProvisionRequest) { r.DisplayName = "   " }},
		{"negative balance", func(r *domain.ProvisionRequest) { r.InitialBalance = -1 }},
		{"unknown account type", func(r *domain.ProvisionRequest) { r.AccountType = "offshore" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			req := validRequest()
			tc.mutate(&req)

			_, err := f.prov.Provision(context.Background(), req)
			if kind := provisionKind(t, err); kind != KindIdentityInvalid {
				t.Errorf("expected %s, got %s", KindIdentityInvalid, kind)
			}
			if f.idp.createCalls != 0 {
				t.Errorf("validation failures must precede all side effects, got %d identity calls", f.idp.createCalls)
			}
		})
	}
}

func TestProvision_SavingsAccountType(t *testing.T) {
	f := newFixture()
	req := validRequest()
	req.AccountType = domain.SavingsAccount

	result, err := f.prov.Provision(context.Background(), req)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Account.Type != domain.SavingsAccount {
		t.Errorf("expected savings account, got %q", result.Account.Type)
	}
}
