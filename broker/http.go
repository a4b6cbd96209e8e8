package broker

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marketstructure/execengine/domain"
)

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	c.sign(req, nil)
	return c.doRequest(req)
}

func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, payload)
	return c.doRequest(req)
}

func (c *Client) deleteWithBody(ctx context.Context, path string, body interface{}) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, payload)
	return c.doRequest(req)
}

// sign attaches the brokerage's HMAC auth headers: timestamp, account, and a
// SHA-256 HMAC over timestamp+method+path+body, base64-encoded.
func (c *Client) sign(req *http.Request, body []byte) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	req.Header.Set("X-API-KEY", c.cfg.APIKey)
	req.Header.Set("X-ACCOUNT", c.cfg.Account)
	req.Header.Set("X-TIMESTAMP", timestamp)
	if c.cfg.Passphrase != "" {
		req.Header.Set("X-PASSPHRASE", c.cfg.Passphrase)
	}
	if c.cfg.APISecret == "" {
		return
	}
	message := timestamp + req.Method + req.URL.Path + string(body)
	mac := hmac.New(sha256.New, []byte(c.cfg.APISecret))
	mac.Write([]byte(message))
	req.Header.Set("X-SIGNATURE", base64.URLEncoding.EncodeToString(mac.Sum(nil)))
}

func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectionError, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %s", domain.ErrConnectionError, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", domain.ErrRateLimited, string(respBody))
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, string(respBody))
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, string(respBody))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d: %s", domain.ErrConnectionError, resp.StatusCode, string(respBody))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: HTTP %d: %s", domain.ErrUnknown, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func errIs(err, target error) bool {
	return errors.Is(err, target)
}
