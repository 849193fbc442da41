/**
 * @description
 * This file defines the domain model for a payment card bound to an account.
 * Cards are issued best-effort at the end of provisioning; a customer without
 * a card is still fully provisioned.
 */
package domain

import "time"

// Card represents a payment card issued against an account.
type Card struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	CardNumber   string    `json:"card_number"`
	ExpiryDate   string    `json:"expiry_date"`
	CVV          string    `json:"-"` // never serialized
	Status       string    `json:"status"`
	DailyLimit   int64     `json:"daily_limit"`   // minor units
	MonthlyLimit int64     `json:"monthly_limit"` // minor units
	CreatedAt    time.Time `json:"created_at"`
}
