/**
 * @description
 * This file contains the customer provisioning orchestrator, the one place in
 * the back office where a multi-step flow spans independently-failable
 * systems. A provisioning run must leave behind either a complete customer
 * (identity + profile + account, plus a best-effort card) or a safely rolled
 * back one, without any cross-table transaction to lean on.
 *
 * The sequence is: create the login identity, then insert the profile row and
 * the account row concurrently, then reconcile the combined outcome
 * (compensating the identity when the profile is irrecoverable, retrying the
 * account insert exactly once), then verify and if needed correct the stored
 * balance, then issue a card best-effort, then publish an event best-effort.
 *
 * @dependencies
 * - The service's internal packages for domain models and storage interfaces.
 * - The identityclient and cardclient packages for collaborator types.
 */
package app

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/harborbank/backoffice/internal/domain"
	"github.com/harborbank/backoffice/internal/store"
	"github.com/harborbank/backoffice/pkg/cardclient"
	"github.com/harborbank/backoffice/pkg/identityclient"
)

// sagaTimeout bounds a detached provisioning run. Generous next to the
// collaborators' own request timeouts so the retry and compensation steps
// still fit.
const sagaTimeout = 45 * time.Second

// IdentityProvider is the contract the provisioner needs from the identity
// service. DeleteIdentity is only ever called as a compensating action.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, email, password string, metadata map[string]string) (*identityclient.Identity, error)
	DeleteIdentity(ctx context.Context, id string) error
}

// CardIssuer is the contract for the best-effort card issuance step.
type CardIssuer interface {
	IssueCard(ctx context.Context, accountID string) (*cardclient.IssuedCard, error)
}

// EventPublisher is the contract for the post-success event publication.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// Provisioner orchestrates the customer provisioning flow.
type Provisioner struct {
	profiles  store.ProfileRepository
	accounts  store.AccountRepository
	cards     store.CardRepository
	identity  IdentityProvider
	issuer    CardIssuer
	publisher EventPublisher

	// generateAccountNumber is swappable for tests.
	generateAccountNumber func() string
}

// NewProvisioner creates a new Provisioner. issuer and publisher may be nil;
// both steps are best-effort and are skipped when absent.
func NewProvisioner(
	profiles store.ProfileRepository,
	accounts store.AccountRepository,
	cards store.CardRepository,
	identity IdentityProvider,
	issuer CardIssuer,
	publisher EventPublisher,
) *Provisioner {
	return &Provisioner{
		profiles:              profiles,
		accounts:              accounts,
		cards:                 cards,
		identity:              identity,
		issuer:                issuer,
		publisher:             publisher,
		generateAccountNumber: GenerateAccountNumber,
	}
}

// Provision runs the full provisioning flow. On failure the returned error is
// always a *ProvisionError. Calling it twice for the same email is safe: the
// duplicate-profile signal from the store is treated as re-entry and the
// existing profile/account pair is returned instead of new rows.
func (p *Provisioner) Provision(ctx context.Context, req domain.ProvisionRequest) (*domain.ProvisionResult, error) {
	if perr := validateRequest(&req); perr != nil {
		return nil, perr
	}

	// The saga must outlive the caller: an abandoned HTTP request does not
	// stop provisioning half-way (that is what makes re-entry safe to rely
	// on), and compensation must still be able to reach the identity
	// provider. Run on a detached context with our own deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sagaTimeout)
	defer cancel()

	// Step 1: login identity. Nothing to compensate if this fails.
	identity, err := p.identity.CreateIdentity(ctx, req.Email, req.Password, map[string]string{
		"display_name": req.DisplayName,
	})
	if err != nil {
		return nil, classifyIdentityFailure(err)
	}
	log.Printf("Created identity %s for %s", identity.ID, req.Email)

	// Step 2: profile and account, concurrently and unordered. Both outcomes
	// must be in hand before any compensation decision.
	type profileOutcome struct {
		profile *domain.Profile
		err     error
	}
	type accountOutcome struct {
		account *domain.Account
		err     error
	}
	profCh := make(chan profileOutcome, 1)
	acctCh := make(chan accountOutcome, 1)

	go func() {
		profile, err := p.profiles.InsertProfile(ctx, newProfile(identity.ID, req))
		profCh <- profileOutcome{profile: profile, err: err}
	}()
	go func() {
		account, err := p.insertAccount(ctx, identity.ID, req)
		acctCh <- accountOutcome{account: account, err: err}
	}()

	prof := <-profCh
	acct := <-acctCh

	// Step 3: reconcile.
	profile := prof.profile
	if prof.err != nil {
		switch ClassifyStorage(prof.err) {
		case FailureDuplicate:
			// A profile for this identity already exists: a retried signup
			// landing on the store's uniqueness constraint. Re-enter instead
			// of failing.
			existing, gerr := p.profiles.GetProfile(ctx, identity.ID)
			if gerr != nil {
				log.Printf("ERROR: Profile exists for identity %s but could not be fetched: %v", identity.ID, gerr)
				return nil, p.compensateIdentity(ctx, identity.ID, KindProfileFailed, "failed to load existing profile", gerr)
			}
			profile = existing
			prior, aerr := p.accounts.GetAccountByProfile(ctx, profile.ID)
			switch {
			case aerr == nil && acct.account == nil:
				// A prior run already completed the pair; nothing new was
				// created in this run.
				log.Printf("Re-entry for identity %s: returning existing profile and account %s", identity.ID, prior.ID)
				return &domain.ProvisionResult{Profile: profile, Account: prior}, nil
			case aerr == nil && acct.account.ID != prior.ID:
				// The concurrent insert landed next to an account from a
				// prior run. Remove the younger row so re-entry never grows
				// the ledger.
				if derr := p.accounts.DeleteAccount(ctx, acct.account.ID); derr != nil {
					log.Printf("ERROR: Could not remove duplicate account %s for profile %s, manual cleanup required: %v", acct.account.ID, profile.ID, derr)
				} else {
					log.Printf("Re-entry for identity %s: removed duplicate account %s, returning existing account %s", identity.ID, acct.account.ID, prior.ID)
				}
				return &domain.ProvisionResult{Profile: profile, Account: prior}, nil
			case aerr != nil && !errors.Is(aerr, store.ErrNotFound):
				log.Printf("WARN: Could not check for existing account for profile %s: %v", profile.ID, aerr)
			}
			// The existing profile has no prior account (or the lookup found
			// this run's own insert): continue with account handling.
		case FailureSchemaMissing:
			log.Printf("CRITICAL: profiles table missing; provisioning cannot proceed")
			return nil, p.compensateIdentity(ctx, identity.ID, KindProfileSchemaMissing, "profile storage is not provisioned", prof.err)
		default:
			return nil, p.compensateIdentity(ctx, identity.ID, KindProfileFailed, "failed to create profile", prof.err)
		}
	}

	// Account handling: exactly one retry with a fresh account number, which
	// also covers a unique collision on the generated number.
	account := acct.account
	if acct.err != nil {
		log.Printf("WARN: Account creation failed for profile %s, retrying once: %v", profile.ID, acct.err)
		account, err = p.insertAccount(ctx, profile.ID, req)
		if err != nil {
			// Deliberately no compensation: the profile may already be
			// user-visible, so a stateful partial success beats deleting it.
			log.Printf("ERROR: Account creation retry failed for profile %s; leaving profile and identity for remediation: %v", profile.ID, err)
			return nil, &ProvisionError{
				Kind:    KindAccountCreationFailed,
				Message: "your profile was created but account setup failed, please contact support",
				Err:     err,
			}
		}
	}

	// Step 4: balance verification and self-heal.
	account, perr := p.verifyBalance(ctx, account, req.InitialBalance)
	if perr != nil {
		return nil, perr
	}

	// Step 5: card issuance, best-effort. Never alters the outcome.
	card := p.issueCard(ctx, account)

	// Every path reaching here created its account in this run, so downstream
	// consumers always hear about it; the pure existing-pair re-entry
	// returned earlier without publishing.
	p.publishProvisioned(ctx, profile, account, card != nil)

	log.Printf("Provisioned customer %s with account %s", profile.ID, account.AccountNumber)
	return &domain.ProvisionResult{Profile: profile, Account: account, Card: card}, nil
}

// compensateIdentity deletes the identity created earlier in the same run and
// builds the error to return. Deletion failure is logged, never escalated:
// the orphaned identity is harmless.
func (p *Provisioner) compensateIdentity(ctx context.Context, identityID string, kind ErrorKind, message string, cause error) *ProvisionError {
	if err := p.identity.DeleteIdentity(ctx, identityID); err != nil {
		log.Printf("WARN: Compensating delete of identity %s failed, identity is orphaned: %v", identityID, err)
	} else {
		log.Printf("Compensated: deleted identity %s", identityID)
	}
	return &ProvisionError{Kind: kind, Message: message, Err: cause}
}

func (p *Provisioner) insertAccount(ctx context.Context, profileID string, req domain.ProvisionRequest) (*domain.Account, error) {
	return p.accounts.InsertAccount(ctx, &domain.Account{
		ProfileID:        profileID,
		AccountNumber:    p.generateAccountNumber(),
		Type:             req.AccountType,
		Balance:          req.InitialBalance,
		AvailableBalance: req.InitialBalance,
		Currency:         "USD",
		Status:           "active",
	})
}

// verifyBalance checks the stored balance against the requested one and
// issues a corrective update when they diverge. The store has been observed
// to coerce numeric values on insert; this is a self-heal, not a retry.
func (p *Provisioner) verifyBalance(ctx context.Context, account *domain.Account, requested int64) (*domain.Account, *ProvisionError) {
	if account.Balance == requested && account.AvailableBalance == requested {
		return account, nil
	}
	log.Printf("WARN: Account %s stored balance %d/%d differs from requested %d, correcting",
		account.ID, account.Balance, account.AvailableBalance, requested)
	corrected, err := p.accounts.UpdateBalance(ctx, account.ID, requested, requested)
	if err != nil {
		log.Printf("ERROR: Balance correction failed for account %s: %v", account.ID, err)
		return nil, &ProvisionError{
			Kind:    KindAccountCreationFailed,
			Message: "your profile was created but account setup failed, please contact support",
			Err:     err,
		}
	}
	return corrected, nil
}

// issueCard runs the best-effort card step: ask the issuer for a card, then
// persist it. Every failure is logged and swallowed.
func (p *Provisioner) issueCard(ctx context.Context, account *domain.Account) *domain.Card {
	if p.issuer == nil {
		return nil
	}
	issued, err := p.issuer.IssueCard(ctx, account.ID)
	if err != nil {
		log.Printf("WARN: Card issuance failed for account %s, customer provisioned without a card: %v", account.ID, err)
		return nil
	}
	card, err := p.cards.InsertCard(ctx, &domain.Card{
		ID:           issued.ID,
		AccountID:    account.ID,
		CardNumber:   issued.CardNumber,
		ExpiryDate:   issued.ExpiryDate,
		CVV:          issued.CVV,
		Status:       issued.Status,
		DailyLimit:   issued.DailyLimit,
		MonthlyLimit: issued.MonthlyLimit,
	})
	if err != nil {
		log.Printf("WARN: Issued card %s could not be persisted for account %s: %v", issued.ID, account.ID, err)
		return nil
	}
	log.Printf("Issued card %s for account %s", card.ID, account.ID)
	return card
}

func (p *Provisioner) publishProvisioned(ctx context.Context, profile *domain.Profile, account *domain.Account, cardIssued bool) {
	if p.publisher == nil {
		return
	}
	event := domain.CustomerProvisionedEvent{
		ProfileID:     profile.ID,
		AccountID:     account.ID,
		AccountNumber: account.AccountNumber,
		Email:         profile.Email,
		CardIssued:    cardIssued,
	}
	if err := p.publisher.Publish(ctx, "customer_events", "customer.provisioned", event); err != nil {
		log.Printf("WARN: Failed to publish customer.provisioned for profile %s: %v", profile.ID, err)
	}
}

func newProfile(identityID string, req domain.ProvisionRequest) *domain.Profile {
	var phone *string
	if req.Phone != "" {
		phone = &req.Phone
	}
	return &domain.Profile{
		ID:            identityID,
		Email:         strings.ToLower(req.Email),
		DisplayName:   req.DisplayName,
		Role:          domain.RoleCustomer,
		Phone:         phone,
		KYCStatus:     domain.KYCPending,
		AccountStatus: "active",
	}
}

// validateRequest normalizes defaults and rejects unusable input before any
// side effect happens.
func validateRequest(req *domain.ProvisionRequest) *ProvisionError {
	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	if req.Email == "" || req.Password == "" || req.DisplayName == "" {
		return &ProvisionError{
			Kind:    KindIdentityInvalid,
			Message: "email, password and display name are required",
		}
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return &ProvisionError{
			Kind:    KindIdentityInvalid,
			Message: "email address is not valid",
			Err:     err,
		}
	}
	if req.InitialBalance < 0 {
		return &ProvisionError{
			Kind:    KindIdentityInvalid,
			Message: "initial balance must not be negative",
		}
	}
	if req.AccountType == "" {
		req.AccountType = domain.CheckingAccount
	}
	if !domain.ValidAccountType(req.AccountType) {
		return &ProvisionError{
			Kind:    KindIdentityInvalid,
			Message: "unsupported account type",
		}
	}
	return nil
}
