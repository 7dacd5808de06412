package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/EthSign/keychain-snap/internal/event"
)

// KVConfig configures the key/value HTTP backend client.
type KVConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func (c *KVConfig) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
}

// KVClient talks to the key/value backend. Unlike the ledger there is no
// id-list plus body-fetch round trip: one request keyed by owner identity
// returns pre-parsed event bodies.
type KVClient struct {
	cfg  KVConfig
	http *retryablehttp.Client
}

func NewKVClient(cfg KVConfig) *KVClient {
	cfg.setDefaults()
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil
	return &KVClient{cfg: cfg, http: rc}
}

func (c *KVClient) Events(ctx context.Context, owner string) ([]Body, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/events/"+owner, nil)
	if err != nil {
		return nil, err
	}
	var out []Body
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *KVClient) Submit(ctx context.Context, owner string, subs []event.Submission) error {
	body, err := json.Marshal(subs)
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/events/"+owner, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	var ack struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.do(req, &ack); err != nil {
		return err
	}
	if !ack.Success {
		return fmt.Errorf("%w: %s", ErrSubmitRejected, ack.Message)
	}
	return nil
}

func (c *KVClient) do(req *retryablehttp.Request, out any) error {
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}
