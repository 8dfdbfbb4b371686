package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChapaClient talks to the Chapa payment API with JSON requests.
type ChapaClient struct {
	Key     string
	BaseURL string
	HTTP    *http.Client
}

func NewChapaClient(key string) *ChapaClient {
	return &ChapaClient{
		Key:     key,
		BaseURL: "https://api.chapa.co",
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ChapaInit describes one transaction initialization.
type ChapaInit struct {
	Amount    float64 `json:"amount,string"`
	Currency  string  `json:"currency"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	TxRef     string  `json:"tx_ref"`
	ReturnURL string  `json:"return_url"`
}

type chapaInitResponse struct {
	Status string `json:"status"`
	Data   struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

// Initialize opens a hosted Chapa checkout and returns its URL.
func (ch *ChapaClient) Initialize(ctx context.Context, init ChapaInit) (string, error) {
	if init.Currency == "" {
		init.Currency = "ETB"
	}
	payload, err := json.Marshal(init)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		ch.BaseURL+"/v1/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+ch.Key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ch.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var out chapaInitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK || out.Status != "success" {
		return "", fmt.Errorf("chapa initialize: status %d: %s", resp.StatusCode, body)
	}
	return out.Data.CheckoutURL, nil
}

type chapaVerifyResponse struct {
	Status string `json:"status"`
	Data   struct {
		Status string `json:"status"`
	} `json:"data"`
}

// Verify asks Chapa whether the transaction behind txRef completed.
func (ch *ChapaClient) Verify(ctx context.Context, txRef string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		ch.BaseURL+"/v1/transaction/verify/"+txRef, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+ch.Key)

	resp, err := ch.HTTP.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, err
	}
	var out chapaVerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, err
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("chapa verify: status %d: %s", resp.StatusCode, body)
	}
	return out.Status == "success" && out.Data.Status == "success", nil
}
