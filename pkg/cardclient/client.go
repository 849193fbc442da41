/**
 * @description
 * This package provides a client for the card issuer API. Card issuance is a
 * best-effort step in provisioning: every error returned from here is logged
 * by the caller and never changes the outcome of the flow.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, io, net/http, time: Standard Go libraries.
 */
package cardclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// IssuedCard is the card record returned by the issuer.
type IssuedCard struct {
	ID           string `json:"id"`
	AccountID    string `json:"account_id"`
	CardNumber   string `json:"card_number"`
	ExpiryDate   string `json:"expiry_date"`
	CVV          string `json:"cvv"`
	Status       string `json:"status"`
	DailyLimit   int64  `json:"daily_limit"`
	MonthlyLimit int64  `json:"monthly_limit"`
}

// Client is a client for the card issuer API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new card issuer client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type issueCardRequest struct {
	AccountID string `json:"account_id"`
}

// IssueCard requests a new card bound to the given account.
func (c *Client) IssueCard(ctx context.Context, accountID string) (*IssuedCard, error) {
	jsonBody, err := json.Marshal(issueCardRequest{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("%s/v1/cards", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("card issuer error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var card IssuedCard
	if err := json.Unmarshal(respBody, &card); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return &card, nil
}
