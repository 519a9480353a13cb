// Package zarinpal implements the payment gateway port against Zarinpal's
// v4 REST API. Amounts cross the wire in Rial while the rest of the system
// accounts in Toman, so every request multiplies by ten.
package zarinpal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sharifevents/shop-service/internal/core/ports"
)

const (
	DefaultBaseURL = "https://payment.zarinpal.com"

	requestPath    = "/pg/v4/payment/request.json"
	verifyPath     = "/pg/v4/payment/verify.json"
	unverifiedPath = "/pg/v4/payment/unVerified.json"
	startPayPath   = "/pg/StartPay/"

	codeSuccess         = 100
	codeAlreadyVerified = 101

	rialPerToman = 10
)

type Config struct {
	MerchantID  string
	CallbackURL string
	BaseURL     string // DefaultBaseURL when empty
	Description string
	Timeout     time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type requestPayload struct {
	MerchantID  string          `json:"merchant_id"`
	Amount      int64           `json:"amount"`
	CallbackURL string          `json:"callback_url"`
	Description string          `json:"description"`
	Metadata    requestMetadata `json:"metadata"`
}

type requestMetadata struct {
	Email   string `json:"email,omitempty"`
	Mobile  string `json:"mobile,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

type verifyPayload struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type merchantPayload struct {
	MerchantID string `json:"merchant_id"`
}

type apiResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type requestData struct {
	Code      int    `json:"code"`
	Authority string `json:"authority"`
}

type verifyData struct {
	Code  int             `json:"code"`
	RefID json.RawMessage `json:"ref_id"`
}

type unverifiedData struct {
	Code        int `json:"code"`
	Authorities []struct {
		Authority string `json:"authority"`
	} `json:"authorities"`
}

func (c *Client) CreatePayment(ctx context.Context, req ports.PaymentRequest) (*ports.PaymentSession, error) {
	description := c.cfg.Description
	if description == "" {
		description = "Order " + req.ReferenceID
	}
	payload := requestPayload{
		MerchantID:  c.cfg.MerchantID,
		Amount:      req.Amount * rialPerToman,
		CallbackURL: c.cfg.CallbackURL,
		Description: description,
		Metadata: requestMetadata{
			Email:   req.Email,
			Mobile:  req.Mobile,
			OrderID: req.ReferenceID,
		},
	}

	var data requestData
	if err := c.post(ctx, requestPath, payload, &data); err != nil {
		return nil, err
	}
	if data.Code != codeSuccess || data.Authority == "" {
		return nil, &ports.GatewayError{Message: fmt.Sprintf("payment request returned code %d", data.Code)}
	}
	return &ports.PaymentSession{
		Authority:   data.Authority,
		RedirectURL: c.cfg.BaseURL + startPayPath + data.Authority,
	}, nil
}

func (c *Client) VerifyPayment(ctx context.Context, authority string, amount int64) (string, error) {
	payload := verifyPayload{
		MerchantID: c.cfg.MerchantID,
		Amount:     amount * rialPerToman,
		Authority:  authority,
	}

	var data verifyData
	if err := c.post(ctx, verifyPath, payload, &data); err != nil {
		return "", err
	}
	if data.Code != codeSuccess && data.Code != codeAlreadyVerified {
		return "", &ports.GatewayError{Message: fmt.Sprintf("verification returned code %d", data.Code)}
	}
	// ref_id arrives as a number; keep it as the raw decimal string.
	refID := string(bytes.Trim(data.RefID, `"`))
	return refID, nil
}

func (c *Client) ListUnverified(ctx context.Context) ([]string, error) {
	var data unverifiedData
	if err := c.post(ctx, unverifiedPath, merchantPayload{MerchantID: c.cfg.MerchantID}, &data); err != nil {
		return nil, err
	}
	if data.Code != codeSuccess {
		return nil, &ports.GatewayError{Message: fmt.Sprintf("unverified listing returned code %d", data.Code)}
	}
	authorities := make([]string, 0, len(data.Authorities))
	for _, a := range data.Authorities {
		authorities = append(authorities, a.Authority)
	}
	return authorities, nil
}

// post sends one API call and decodes its data block into out. Transport
// failures and malformed bodies surface as GatewayUnreachableError because
// the provider-side outcome is unknown; an errors block is a definite
// rejection.
func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &ports.GatewayUnreachableError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &ports.GatewayUnreachableError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ports.GatewayUnreachableError{Err: fmt.Errorf("%s returned status %d", path, resp.StatusCode)}
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &ports.GatewayUnreachableError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if msg := flattenErrors(envelope.Errors); msg != "" {
		return &ports.GatewayError{Message: msg}
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "[]" {
		return &ports.GatewayUnreachableError{Err: fmt.Errorf("%s returned no data", path)}
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return &ports.GatewayUnreachableError{Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

// flattenErrors copes with the API's two error shapes: an empty list when
// nothing went wrong, or an object with code and message when it did.
func flattenErrors(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "[]" || string(raw) == "null" {
		return ""
	}
	var detail struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &detail); err != nil {
		return string(raw)
	}
	if detail.Message == "" && detail.Code == 0 {
		return ""
	}
	return fmt.Sprintf("code %d: %s", detail.Code, detail.Message)
}

var _ ports.Gateway = (*Client)(nil)
