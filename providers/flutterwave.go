package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const DefaultFlutterwaveBaseURL = "https://api.flutterwave.com/v3"

// FlutterwaveProvider implements PaymentProvider using the Flutterwave v3 API.
type FlutterwaveProvider struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewFlutterwaveProvider creates a new FlutterwaveProvider. A zero timeout means 30s.
func NewFlutterwaveProvider(baseURL, secretKey string, timeout time.Duration) *FlutterwaveProvider {
	if baseURL == "" {
		baseURL = DefaultFlutterwaveBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &FlutterwaveProvider{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ---- Flutterwave API request/response structs ----

type flwPaymentRequest struct {
	TxRef          string         `json:"tx_ref"`
	Amount         float64        `json:"amount"`
	Currency       string         `json:"currency"`
	RedirectURL    string         `json:"redirect_url"`
	PaymentOptions string         `json:"payment_options,omitempty"`
	Customer       Customer       `json:"customer"`
	Customizations Customizations `json:"customizations"`
}

type flwPaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

type flwVerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       int64   `json:"id"`
		TxRef    string  `json:"tx_ref"`
		FlwRef   string  `json:"flw_ref"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		Status   string  `json:"status"`
	} `json:"data"`
}

// ---- PaymentProvider implementation ----

func (f *FlutterwaveProvider) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentLink, error) {
	body := flwPaymentRequest{
		TxRef:          req.Reference,
		Amount:         req.Amount,
		Currency:       req.Currency,
		RedirectURL:    req.RedirectURL,
		PaymentOptions: req.PaymentOptions,
		Customer:       req.Customer,
		Customizations: req.Customizations,
	}

	var resp flwPaymentResponse
	if err := f.doRequest(ctx, http.MethodPost, "/payments", body, &resp); err != nil {
		return nil, fmt.Errorf("flutterwave CreatePayment: %w", err)
	}
	if resp.Status != "success" || resp.Data.Link == "" {
		msg := resp.Message
		if msg == "" {
			msg = "payment link not returned"
		}
		return nil, &GatewayError{StatusCode: http.StatusOK, Message: msg}
	}
	return &PaymentLink{URL: resp.Data.Link}, nil
}

// VerifyByReference treats a 4xx answer with a readable body as a verdict (the
// transaction is unknown or rejected). Transport errors and 5xx are returned as errors.
func (f *FlutterwaveProvider) VerifyByReference(ctx context.Context, reference string) (*Verification, error) {
	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(reference)

	var resp flwVerifyResponse
	err := f.doRequest(ctx, http.MethodGet, path, nil, &resp)
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.StatusCode < http.StatusInternalServerError && resp.Status != "" {
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("flutterwave VerifyByReference: %w", err)
	}

	return &Verification{
		Status:        resp.Status,
		Message:       resp.Message,
		TransactionID: resp.Data.ID,
		Reference:     resp.Data.TxRef,
		GatewayRef:    resp.Data.FlwRef,
		Amount:        resp.Data.Amount,
		Currency:      resp.Data.Currency,
		TxStatus:      resp.Data.Status,
	}, nil
}

// ---- HTTP helper ----

// doRequest decodes the body into out even for non-2xx answers, so callers can read
// the gateway's message; the returned *GatewayError carries that message too.
func (f *FlutterwaveProvider) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	decodeErr := json.Unmarshal(respBytes, out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gatewayMessage(respBytes)
		if msg == "" {
			msg = fmt.Sprintf("flutterwave API error (status %d)", resp.StatusCode)
		}
		return &GatewayError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	return nil
}

func gatewayMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Message
}
