package domain

// ProvisionRequest is the input to the customer provisioning flow, whether it
// arrives from self-signup or from an admin creating a customer.
type ProvisionRequest struct {
	Email          string      `json:"email"`
	Password       string      `json:"password"`
	DisplayName    string      `json:"display_name"`
	Phone          string      `json:"phone,omitempty"`
	InitialBalance int64       `json:"initial_balance"` // minor units, >= 0
	AccountType    AccountType `json:"account_type"`
}

// ProvisionResult is returned to the caller after a successful provisioning
// run. Card is nil when issuance failed or was skipped; that is still success.
type ProvisionResult struct {
	Profile *Profile `json:"profile"`
	Account *Account `json:"account"`
	Card    *Card    `json:"card,omitempty"`
}
