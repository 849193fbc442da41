/**
 * @description
 * This file defines the core user model for the back office. A user is a login
 * identity plus a profile row; the profile's ID always equals the identity ID
 * assigned by the identity provider, so profiles are addressable without a
 * separate lookup table.
 *
 * @notes
 * - Role-specific fields live in a tagged variant (one payload pointer per
 *   role) rather than an inheritance hierarchy. Consumers switch on Role;
 *   exactly one payload is non-nil.
 */
package domain

import "time"

// Role identifies which kind of user a profile belongs to.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleTeller   Role = "teller"
	RoleAdmin    Role = "admin"
)

// KYCStatus tracks the verification state of a customer profile.
type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

// Profile is a row in the profiles table. Its ID equals the identity
// provider's ID for the same person; provisioning relies on that equality.
type Profile struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	Role          Role      `json:"role"`
	Phone         *string   `json:"phone,omitempty"`
	KYCStatus     KYCStatus `json:"kyc_status"`
	AccountStatus string    `json:"account_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CustomerData holds the fields only customer users carry.
type CustomerData struct {
	AccountIDs []string `json:"account_ids,omitempty"`
}

// TellerData holds the fields only teller users carry.
type TellerData struct {
	BranchCode string `json:"branch_code"`
}

// AdminData holds the fields only admin users carry.
type AdminData struct {
	Permissions []string `json:"permissions,omitempty"`
}

// User is the tagged-variant view of a profile handed to the UI layer.
// Exactly one of Customer, Teller, Admin is non-nil, matching Role.
type User struct {
	Profile  Profile       `json:"profile"`
	Role     Role          `json:"role"`
	Customer *CustomerData `json:"customer,omitempty"`
	Teller   *TellerData   `json:"teller,omitempty"`
	Admin    *AdminData    `json:"admin,omitempty"`
}
