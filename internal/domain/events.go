/**
 * @description
 * This file defines the domain models for events published by the back office
 * to the message broker (RabbitMQ). These structs are the contract consumed by
 * downstream services (notifications, analytics).
 */
package domain

// CustomerProvisionedEvent is published after a provisioning run completes
// successfully. CardIssued reports whether the best-effort card step worked.
type CustomerProvisionedEvent struct {
	ProfileID     string `json:"profile_id"`
	AccountID     string `json:"account_id"`
	AccountNumber string `json:"account_number"`
	Email         string `json:"email"`
	CardIssued    bool   `json:"card_issued"`
}
