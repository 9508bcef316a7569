package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"

	"quickbite/internal/apperr"
	"quickbite/internal/config"
	"quickbite/internal/logger"
)

// Paystack is a thin client for the payment provider's REST API. Amounts
// cross the wire in minor units (kobo/cents).
type Paystack struct {
	cfg    config.PaystackConfig
	client *http.Client
	log    *logger.Logger
}

func NewPaystack(cfg config.PaystackConfig, log *logger.Logger) *Paystack {
	return &Paystack{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *Paystack) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return apperr.Upstream("payment provider unreachable", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apperr.Upstream("payment provider returned malformed response", err)
	}
	if resp.StatusCode >= 400 || !env.Status {
		p.log.Error("PAYSTACK", fmt.Sprintf("%s %s -> %d: %s", method, path, resp.StatusCode, env.Message))
		return apperr.Upstream(fmt.Sprintf("payment provider rejected request: %s", env.Message), nil)
	}
	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apperr.Upstream("payment provider returned malformed data", err)
		}
	}
	return nil
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts a provider amount back to major units.
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// InitializeTransaction opens a checkout session for the given amount.
func (p *Paystack) InitializeTransaction(ctx context.Context, email string, amount float64, metadata map[string]interface{}) (*InitializeResult, error) {
	var out InitializeResult
	err := p.do(ctx, http.MethodPost, "/transaction/initialize", map[string]interface{}{
		"email":    email,
		"amount":   toMinorUnits(amount),
		"metadata": metadata,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type VerifyResult struct {
	Status    string                 `json:"status"`
	Reference string                 `json:"reference"`
	Amount    int64                  `json:"amount"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// VerifyTransaction fetches the provider's view of a transaction.
func (p *Paystack) VerifyTransaction(ctx context.Context, reference string) (*VerifyResult, error) {
	var out VerifyResult
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCustomer registers the wallet owner with the provider.
func (p *Paystack) CreateCustomer(ctx context.Context, email, firstName, lastName, phone string) (string, error) {
	var out struct {
		CustomerCode string `json:"customer_code"`
	}
	err := p.do(ctx, http.MethodPost, "/customer", map[string]interface{}{
		"email":      email,
		"first_name": firstName,
		"last_name":  lastName,
		"phone":      phone,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.CustomerCode, nil
}

// CreateDedicatedAccount provisions a virtual bank account for wallet top-ups.
func (p *Paystack) CreateDedicatedAccount(ctx context.Context, customerCode string) (map[string]interface{}, error) {
	var out map[string]interface{}
	err := p.do(ctx, http.MethodPost, "/dedicated_account", map[string]interface{}{
		"customer":       customerCode,
		"preferred_bank": "wema-bank",
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTransferRecipient registers a payout destination and returns its code.
func (p *Paystack) CreateTransferRecipient(ctx context.Context, name, accountNumber, bankCode string) (string, error) {
	var out struct {
		RecipientCode string `json:"recipient_code"`
	}
	err := p.do(ctx, http.MethodPost, "/transferrecipient", map[string]interface{}{
		"type":           "nuban",
		"name":           name,
		"account_number": accountNumber,
		"bank_code":      bankCode,
		"currency":       "NGN",
	}, &out)
	if err != nil {
		return "", err
	}
	return out.RecipientCode, nil
}

// InitiateTransfer requests a payout to a registered recipient. The caller's
// reference makes the request idempotent on the provider side.
func (p *Paystack) InitiateTransfer(ctx context.Context, amount float64, recipientCode, reference, reason string) error {
	return p.do(ctx, http.MethodPost, "/transfer", map[string]interface{}{
		"source":    "balance",
		"amount":    toMinorUnits(amount),
		"recipient": recipientCode,
		"reference": reference,
		"reason":    reason,
	}, nil)
}
