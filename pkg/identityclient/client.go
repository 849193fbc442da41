/**
 * @description
 * This package provides a client for the external identity provider, the
 * service that owns login credentials. The provisioner only ever creates an
 * identity, and deletes one as a compensating action when profile creation
 * fails irrecoverably.
 *
 * Key features:
 * - Manages the API base URL and secret key.
 * - Maps the provider's failure responses onto typed sentinel errors so the
 *   caller can branch without parsing response bodies.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 */
package identityclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrDuplicateEmail is returned when the email already has an identity.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrInvalidEmail is returned when the provider rejects the email format.
var ErrInvalidEmail = errors.New("invalid email address")

// ErrWeakPassword is returned when the provider rejects the password.
var ErrWeakPassword = errors.New("password does not meet requirements")

// ErrInvalidRequest is returned when the provider rejects the request as
// malformed (4xx) without one of the known error codes. Retrying the same
// input will not succeed.
var ErrInvalidRequest = errors.New("identity provider rejected the request")

// Identity is the record the provider returns for a created login.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// APIError represents a non-success response that does not map onto one of
// the typed sentinels above.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity provider error: status %d, body: %s", e.StatusCode, e.Body)
}

// Client is a client for the identity provider API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new identity provider client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type createIdentityRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateIdentity creates a login identity and returns its stable ID.
func (c *Client) CreateIdentity(ctx context.Context, email, password string, metadata map[string]string) (*Identity, error) {
	url := fmt.Sprintf("%s/v1/identities", c.baseURL)
	var identity Identity
	err := c.do(ctx, http.MethodPost, url, createIdentityRequest{Email: email, Password: password, Metadata: metadata}, &identity)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// DeleteIdentity removes an identity. Callers treat failures as best-effort.
func (c *Client) DeleteIdentity(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/v1/identities/%s", c.baseURL, id)
	return c.do(ctx, http.MethodDelete, url, nil, nil)
}

// do is a helper function to make HTTP requests to the identity provider.
func (c *Client) do(ctx context.Context, method, url string, body, target interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.classifyFailure(resp.StatusCode, respBody)
	}

	if target != nil {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("failed to unmarshal response body: %w", err)
		}
	}

	return nil
}

// classifyFailure maps a non-success response onto a typed error.
func (c *Client) classifyFailure(status int, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)

	switch {
	case status == http.StatusConflict || er.Code == "email_exists":
		return ErrDuplicateEmail
	case er.Code == "invalid_email":
		return ErrInvalidEmail
	case er.Code == "weak_password":
		return ErrWeakPassword
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		log.Printf("Identity provider rejected request with status %d: %s", status, string(body))
		return fmt.Errorf("%w: status %d", ErrInvalidRequest, status)
	}

	log.Printf("Identity provider returned non-success status code %d: %s", status, string(body))
	return &APIError{StatusCode: status, Body: string(body)}
}
