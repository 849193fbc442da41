/**
 * @description
 * Remediation sweep for provisioning runs that ended in the deliberate
 * stateful partial success: profile and identity exist but the account
 * creation retry was exhausted. The sweep re-attempts account creation for
 * such profiles on a schedule instead of deleting a customer-visible profile.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: Job scheduling.
 */
package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harborbank/backoffice/internal/domain"
	"github.com/harborbank/backoffice/internal/store"
)

const remediationBatchSize = 50

// RemediationSweep re-creates missing accounts for orphaned profiles.
type RemediationSweep struct {
	accounts store.AccountRepository
	cron     *cron.Cron
	schedule string

	generateAccountNumber func() string
}

// NewRemediationSweep creates a sweep runner with the given cron schedule
// (e.g. "@hourly").
func NewRemediationSweep(accounts store.AccountRepository, schedule string) *RemediationSweep {
	return &RemediationSweep{
		accounts:              accounts,
		cron:                  cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		schedule:              schedule,
		generateAccountNumber: GenerateAccountNumber,
	}
}

// Start registers the sweep with the scheduler and starts it.
func (s *RemediationSweep) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Run); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("Scheduled account remediation sweep (%s)", s.schedule)
	return nil
}

// Stop stops the scheduler and returns a context that completes when any
// running job has finished.
func (s *RemediationSweep) Stop() context.Context {
	return s.cron.Stop()
}

// Run executes one sweep. Each orphaned profile gets one account-creation
// attempt; failures are logged and retried on the next sweep.
func (s *RemediationSweep) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	profiles, err := s.accounts.FindProfilesMissingAccounts(ctx, remediationBatchSize)
	if err != nil {
		log.Printf("ERROR: Remediation sweep could not list orphaned profiles: %v", err)
		return
	}
	if len(profiles) == 0 {
		return
	}
	log.Printf("Remediation sweep found %d profile(s) without accounts", len(profiles))

	for _, profile := range profiles {
		// The originally requested balance is gone with the failed run; the
		// remediated account starts at zero and support adjusts if needed.
		account, err := s.accounts.InsertAccount(ctx, &domain.Account{
			ProfileID:     profile.ID,
			AccountNumber: s.generateAccountNumber(),
			Type:          domain.CheckingAccount,
			Currency:      "USD",
			Status:        "active",
		})
		if err != nil {
			log.Printf("ERROR: Remediation failed for profile %s: %v", profile.ID, err)
			continue
		}
		log.Printf("Remediated profile %s with account %s", profile.ID, account.AccountNumber)
	}
}
