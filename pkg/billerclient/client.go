/**
 * @description
 * This package provides a client for the upstream biller backend API. It
 * encapsulates the logic for making authenticated HTTP requests to the
 * catalog, beneficiary, security-settings and bill-payment endpoints,
 * handling request body construction and response parsing.
 *
 * @notes
 * - All monetary values are decimal strings on the wire.
 * - Initiate requests carry a client-generated Idempotency-Key header so a
 *   retried request for the same logical attempt cannot create a second
 *   pending transaction server-side.
 * - The confirm request transmits every collected verification factor, not
 *   just the PIN; the wire contract is explicit about optional factors.
 */
package billerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Upstream error codes this service cares about. The confirm-phase split
// between retryable factor mismatches and dead pending transactions hangs on
// these values.
const (
	CodeInvalidPIN          = "invalid_pin"
	CodeInvalidOTP          = "invalid_otp"
	CodeInvalidTwoFactor    = "invalid_2fa"
	CodeTransactionExpired  = "transaction_expired"
	CodeTransactionNotFound = "transaction_not_found"
	CodeInsufficientBalance = "insufficient_balance"
	CodeInvalidProvider     = "invalid_provider"
	CodeDuplicateRequest    = "duplicate_request"
	CodeRateLimited         = "rate_limited"
)

// Client is a client for the biller backend API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new biller API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents a structured rejection from the biller API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("biller api error: %s - %s", e.Code, e.Message)
	}
	return fmt.Sprintf("biller api error: %s", e.Code)
}

// Provider is a biller in the upstream catalog.
type Provider struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	CategoryCode string `json:"categoryCode"`
	CountryCode  string `json:"countryCode"`
}

// Plan is a fixed-price product offered by a provider.
type Plan struct {
	ID         string `json:"id"`
	ProviderID int64  `json:"providerId"`
	Name       string `json:"name"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

// Beneficiary is the upstream representation of a saved payment destination.
type Beneficiary struct {
	ID                string    `json:"id"`
	DisplayName       string    `json:"displayName"`
	AccountNumber     string    `json:"accountNumber"`
	ProviderReference string    `json:"providerReference,omitempty"`
	CategoryCode      string    `json:"categoryCode"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// BeneficiaryPayload is the create/update request body for a beneficiary.
type BeneficiaryPayload struct {
	DisplayName       string `json:"displayName"`
	AccountNumber     string `json:"accountNumber"`
	ProviderReference string `json:"providerReference,omitempty"`
	CategoryCode      string `json:"categoryCode"`
}

// SecuritySettings mirrors the securityConfirmationSettings response.
type SecuritySettings struct {
	VerifyWithPin   bool `json:"verifyWithPin"`
	VerifyWithEmail bool `json:"verifyWithEmail"`
	VerifyWith2FA   bool `json:"verifyWith2FA"`
}

// InitiatePaymentRequest is the phase-1 request body.
type InitiatePaymentRequest struct {
	CategoryCode  string `json:"categoryCode"`
	ProviderID    int64  `json:"providerId"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	AccountNumber string `json:"accountNumber"`
	PlanID        string `json:"planId,omitempty"`
}

// InitiatePaymentResponse carries the server-assigned transaction id and the
// authoritative amount/fee/total for the pending transaction.
type InitiatePaymentResponse struct {
	TransactionID int64  `json:"transactionId"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	TotalAmount   string `json:"totalAmount"`
}

// ConfirmPaymentRequest is the phase-2 request body. Optional factors are
// omitted when the account's policy does not require them.
type ConfirmPaymentRequest struct {
	TransactionID int64  `json:"transactionId"`
	PIN           string `json:"pin"`
	EmailOTP      string `json:"emailOtp,omitempty"`
	TwoFACode     string `json:"twoFACode,omitempty"`
}

// ConfirmPaymentResponse is the settlement outcome for a confirmed payment.
type ConfirmPaymentResponse struct {
	TransactionID int64  `json:"transactionId"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	FailureReason string `json:"failureReason,omitempty"`
	SettledAt     string `json:"settledAt,omitempty"`
}

// TransactionDetail is the settlement detail for receipt rendering and for
// reconciling an unknown confirm outcome.
type TransactionDetail struct {
	TransactionID int64  `json:"transactionId"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	Amount        string `json:"amount"`
	Fee           string `json:"fee"`
	TotalAmount   string `json:"totalAmount"`
	FailureReason string `json:"failureReason,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	SettledAt     string `json:"settledAt,omitempty"`
}

// ListProviders fetches the provider catalog for one category and country.
func (c *Client) ListProviders(ctx context.Context, categoryCode, countryCode string) ([]Provider, error) {
	q := url.Values{}
	q.Set("categoryCode", categoryCode)
	if countryCode != "" {
		q.Set("countryCode", countryCode)
	}
	var providers []Provider
	if err := c.doRequest(ctx, http.MethodGet, "/providers?"+q.Encode(), nil, "", &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// ListPlans fetches the plan catalog for one provider.
func (c *Client) ListPlans(ctx context.Context, providerID int64) ([]Plan, error) {
	q := url.Values{}
	q.Set("providerId", strconv.FormatInt(providerID, 10))
	var plans []Plan
	if err := c.doRequest(ctx, http.MethodGet, "/plans?"+q.Encode(), nil, "", &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// ListBeneficiaries fetches saved destinations for one category.
func (c *Client) ListBeneficiaries(ctx context.Context, categoryCode string) ([]Beneficiary, error) {
	q := url.Values{}
	q.Set("categoryCode", categoryCode)
	var beneficiaries []Beneficiary
	if err := c.doRequest(ctx, http.MethodGet, "/beneficiaries?"+q.Encode(), nil, "", &beneficiaries); err != nil {
		return nil, err
	}
	return beneficiaries, nil
}

// CreateBeneficiary saves a new destination.
func (c *Client) CreateBeneficiary(ctx context.Context, payload BeneficiaryPayload) (*Beneficiary, error) {
	var created Beneficiary
	if err := c.doRequest(ctx, http.MethodPost, "/beneficiaries", payload, "", &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateBeneficiary replaces an existing destination.
func (c *Client) UpdateBeneficiary(ctx context.Context, beneficiaryID string, payload BeneficiaryPayload) (*Beneficiary, error) {
	var updated Beneficiary
	if err := c.doRequest(ctx, http.MethodPut, "/beneficiaries/"+url.PathEscape(beneficiaryID), payload, "", &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteBeneficiary removes a saved destination.
func (c *Client) DeleteBeneficiary(ctx context.Context, beneficiaryID string) error {
	return c.doRequest(ctx, http.MethodDelete, "/beneficiaries/"+url.PathEscape(beneficiaryID), nil, "", nil)
}

// GetSecuritySettings fetches the account's confirmation settings.
func (c *Client) GetSecuritySettings(ctx context.Context) (*SecuritySettings, error) {
	var settings SecuritySettings
	if err := c.doRequest(ctx, http.MethodGet, "/securityConfirmationSettings", nil, "", &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// InitiatePayment starts phase 1 of the two-phase protocol. The idempotency
// key must be freshly generated for each logical attempt.
func (c *Client) InitiatePayment(ctx context.Context, req InitiatePaymentRequest, idempotencyKey string) (*InitiatePaymentResponse, error) {
	var resp InitiatePaymentResponse
	if err := c.doRequest(ctx, http.MethodPost, "/billPayment/initiate", req, idempotencyKey, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmPayment runs phase 2 against a pending transaction.
func (c *Client) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*ConfirmPaymentResponse, error) {
	var resp ConfirmPaymentResponse
	if err := c.doRequest(ctx, http.MethodPost, "/billPayment/confirm", req, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTransaction fetches settlement detail for one transaction id.
func (c *Client) GetTransaction(ctx context.Context, transactionID int64) (*TransactionDetail, error) {
	var detail TransactionDetail
	path := "/transactions/" + strconv.FormatInt(transactionID, 10)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, "", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ParseTransactionID converts the string transaction id used by callers back
// to the numeric id the biller API expects.
func ParseTransactionID(transactionID string) (int64, error) {
	return strconv.ParseInt(transactionID, 10, 64)
}

// doRequest performs an authenticated request and decodes the response into
// out (when non-nil). Non-2xx responses are returned as *APIError when the
// body parses as one.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, idempotencyKey string, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("biller request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read biller response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(respBody, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = "unknown_error"
			apiErr.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return apiErr
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode biller response: %w", err)
		}
	}
	return nil
}
