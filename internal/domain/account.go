/**
 * @description
 * This file defines the domain model for a financial account as stored in the
 * accounts table (the account ledger).
 *
 * @notes
 * - All monetary amounts are int64 minor units (cents). Balance and
 *   AvailableBalance are equal at creation; provisioning verifies the stored
 *   balance against the requested one and corrects it when they diverge.
 * - AccountNumber is generated by the provisioner and is only guaranteed
 *   unique by the ledger's unique constraint, not by the generator.
 */
package domain

import "time"

// AccountType defines the product type of an account.
type AccountType string

const (
	CheckingAccount AccountType = "checking"
	SavingsAccount  AccountType = "savings"
	BusinessAccount AccountType = "business"
)

// ValidAccountType reports whether t is one of the supported account types.
func ValidAccountType(t AccountType) bool {
	switch t {
	case CheckingAccount, SavingsAccount, BusinessAccount:
		return true
	}
	return false
}

// Account represents a customer's financial account in our ledger.
type Account struct {
	ID               string      `json:"id"`
	ProfileID        string      `json:"profile_id"`
	AccountNumber    string      `json:"account_number"`
	Type             AccountType `json:"account_type"`
	Balance          int64       `json:"balance"`           // minor units
	AvailableBalance int64       `json:"available_balance"` // minor units
	Currency         string      `json:"currency"`
	Status           string      `json:"status"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}
