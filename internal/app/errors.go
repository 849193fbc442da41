/**
 * @description
 * This file defines the typed error taxonomy for customer provisioning and
 * the classifier that maps raw provider/storage failures onto it. The
 * provisioner branches on these kinds deterministically; nothing in this
 * service string-matches database errors.
 *
 * The kinds map 1:1 onto the three UI treatments: fix-your-input
 * (IdentityDuplicate, IdentityInvalid), temporary-failure-try-again
 * (IdentityUnavailable), and contact-support (ProfileSchemaMissing,
 * ProfileFailed, AccountCreationFailed).
 */
package app

import (
	"errors"
	"fmt"

	"github.com/harborbank/backoffice/internal/store"
	"github.com/harborbank/backoffice/pkg/identityclient"
)

// ErrorKind identifies the category of a provisioning failure.
type ErrorKind string

const (
	// KindIdentityDuplicate means the email already has a login identity.
	KindIdentityDuplicate ErrorKind = "identity_duplicate"
	// KindIdentityInvalid means the request itself is unusable (bad email,
	// weak password, missing fields).
	KindIdentityInvalid ErrorKind = "identity_invalid"
	// KindIdentityUnavailable means the identity provider failed for a reason
	// other than the request content. No side effects exist yet.
	KindIdentityUnavailable ErrorKind = "identity_unavailable"
	// KindProfileSchemaMissing means the profiles table is absent. The
	// just-created identity is compensated before this is returned.
	KindProfileSchemaMissing ErrorKind = "profile_schema_missing"
	// KindProfileFailed means profile creation failed irrecoverably for any
	// non-duplicate reason. The identity is compensated before this is returned.
	KindProfileFailed ErrorKind = "profile_failed"
	// KindAccountCreationFailed means the account insert (or the corrective
	// balance update) failed after the single retry. The profile and identity
	// are deliberately left in place for remediation.
	KindAccountCreationFailed ErrorKind = "account_creation_failed"
)

// ProvisionError is the only error type Provision returns.
type ProvisionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ProvisionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

// FailureClass categorizes a storage-layer failure.
type FailureClass int

const (
	// FailureUnknown covers transient or unclassified failures. It is the
	// only class eligible for retry.
	FailureUnknown FailureClass = iota
	// FailureDuplicate is a unique-constraint collision.
	FailureDuplicate
	// FailureSchemaMissing means the target table does not exist.
	FailureSchemaMissing
	// FailureConstraint is any other integrity violation.
	FailureConstraint
)

// ClassifyStorage maps a repository error onto a FailureClass.
func ClassifyStorage(err error) FailureClass {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return FailureDuplicate
	case errors.Is(err, store.ErrSchemaMissing):
		return FailureSchemaMissing
	case errors.Is(err, store.ErrConstraint):
		return FailureConstraint
	default:
		return FailureUnknown
	}
}

// classifyIdentityFailure maps an identity provider error onto the caller
// taxonomy. No side effects exist when the identity step fails, so these
// kinds never involve compensation.
func classifyIdentityFailure(err error) *ProvisionError {
	switch {
	case errors.Is(err, identityclient.ErrDuplicateEmail):
		return &ProvisionError{
			Kind:    KindIdentityDuplicate,
			Message: "this email is already registered, please sign in",
			Err:     err,
		}
	case errors.Is(err, identityclient.ErrInvalidEmail):
		return &ProvisionError{
			Kind:    KindIdentityInvalid,
			Message: "email address is not valid",
			Err:     err,
		}
	case errors.Is(err, identityclient.ErrWeakPassword):
		return &ProvisionError{
			Kind:    KindIdentityInvalid,
			Message: "password does not meet the minimum requirements",
			Err:     err,
		}
	case errors.Is(err, identityclient.ErrInvalidRequest):
		return &ProvisionError{
			Kind:    KindIdentityInvalid,
			Message: "the identity provider rejected the signup details",
			Err:     err,
		}
	default:
		return &ProvisionError{
			Kind:    KindIdentityUnavailable,
			Message: "could not create login identity, please try again",
			Err:     err,
		}
	}
}
