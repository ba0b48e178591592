package payment

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ProviderTransaction is the provider-side view of one payment attempt.
type ProviderTransaction struct {
	MerchantRef string
	Status      string
	CheckoutURL string
	Amount      int64
	PaidAt      *time.Time
}

// Provider is the payment gateway consumed as a black box: invoice creation
// and transaction-detail query.
type Provider interface {
	CreateTransaction(merchantRef, email string, amount int64) (*ProviderTransaction, error)
	GetTransactionDetail(merchantRef string) (*ProviderTransaction, error)
}

// HTTPProvider talks to a Tripay-style gateway. Requests carry an
// HMAC-SHA256 signature of merchantCode+merchantRef+amount.
type HTTPProvider struct {
	BaseURL      string
	APIKey       string
	PrivateKey   string
	MerchantCode string
	Client       *http.Client
}

// NewHTTPProvider builds a gateway client with a bounded request timeout.
func NewHTTPProvider(baseURL, apiKey, privateKey, merchantCode string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		PrivateKey:   privateKey,
		MerchantCode: merchantCode,
		Client:       &http.Client{Timeout: 30 * time.Second},
	}
}

type providerEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		MerchantRef string `json:"merchant_ref"`
		Status      string `json:"status"`
		CheckoutURL string `json:"checkout_url"`
		Amount      int64  `json:"amount"`
		PaidAt      int64  `json:"paid_at"`
	} `json:"data"`
}

func (p *HTTPProvider) CreateTransaction(merchantRef, email string, amount int64) (*ProviderTransaction, error) {
	payload := map[string]interface{}{
		"method":         "QRIS",
		"merchant_ref":   merchantRef,
		"amount":         amount,
		"customer_email": email,
		"signature":      p.requestSignature(merchantRef, amount),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, p.BaseURL+"/transaction/create", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	return p.do(req)
}

func (p *HTTPProvider) GetTransactionDetail(merchantRef string) (*ProviderTransaction, error) {
	req, err := http.NewRequest(http.MethodGet, p.BaseURL+"/transaction/detail?merchant_ref="+merchantRef, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	return p.do(req)
}

func (p *HTTPProvider) do(req *http.Request) (*ProviderTransaction, error) {
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment provider request: %w", err)
	}
	defer resp.Body.Close()

	var envelope providerEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decoding provider response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		return nil, fmt.Errorf("payment provider error: %s", envelope.Message)
	}

	tx := &ProviderTransaction{
		MerchantRef: envelope.Data.MerchantRef,
		Status:      envelope.Data.Status,
		CheckoutURL: envelope.Data.CheckoutURL,
		Amount:      envelope.Data.Amount,
	}
	if envelope.Data.PaidAt > 0 {
		paidAt := time.Unix(envelope.Data.PaidAt, 0)
		tx.PaidAt = &paidAt
	}
	return tx, nil
}

func (p *HTTPProvider) requestSignature(merchantRef string, amount int64) string {
	mac := hmac.New(sha256.New, []byte(p.PrivateKey))
	fmt.Fprintf(mac, "%s%s%d", p.MerchantCode, merchantRef, amount)
	return hex.EncodeToString(mac.Sum(nil))
}
