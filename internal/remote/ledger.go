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
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/EthSign/keychain-snap/internal/event"
)

const (
	ledgerPageSize    = 100
	submitChunkSize   = 10
	bodyFetchParallel = 8
)

// LedgerConfig configures the ledger backend client.
type LedgerConfig struct {
	GatewayURL string // query index and body resolution
	BundlerURL string // upload endpoint and short-lived cache
	Timeout    time.Duration
	// SubmitRate paces chunked uploads; the bundler enforces per-request
	// quotas.
	SubmitRate rate.Limit
}

func (c *LedgerConfig) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BundlerURL == "" {
		c.BundlerURL = c.GatewayURL
	}
	if c.SubmitRate <= 0 {
		c.SubmitRate = rate.Limit(1) // one chunk per second
	}
}

// LedgerClient talks to the durable ledger. Listing is paginated, pages of
// up to 100 nodes keyed by a cursor, so one fetch cycle costs
// O(total_events/100) independently retryable round trips.
type LedgerClient struct {
	cfg     LedgerConfig
	http    *retryablehttp.Client
	limiter *rate.Limiter
	bodies  *gocache.Cache
}

func NewLedgerClient(cfg LedgerConfig) *LedgerClient {
	cfg.setDefaults()
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil
	return &LedgerClient{
		cfg:     cfg,
		http:    rc,
		limiter: rate.NewLimiter(cfg.SubmitRate, 1),
		bodies:  gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// Events lists the owner's node ids, resolves their bodies, and appends any
// records still sitting in the bundler's short-lived cache (accepted for
// upload but not yet queryable from the index).
func (c *LedgerClient) Events(ctx context.Context, owner string) ([]Body, error) {
	refs, err := c.ListEventIDs(ctx, owner)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	bodies, err := c.FetchBodies(ctx, ids)
	if err != nil {
		return nil, err
	}
	cached, err := c.CachedBodies(ctx, owner)
	if err != nil {
		return nil, err
	}
	return append(bodies, cached...), nil
}

type gqlEdge struct {
	Cursor string `json:"cursor"`
	Node   struct {
		ID        string `json:"id"`
		Timestamp int64  `json:"timestamp"`
	} `json:"node"`
}

type gqlResponse struct {
	Data struct {
		Transactions struct {
			Edges []gqlEdge `json:"edges"`
		} `json:"transactions"`
	} `json:"data"`
}

const listQuery = `query($owner: String!, $after: String, $first: Int!) {
  transactions(tags: [{name: "ID", values: [$owner]}, {name: "Application", values: ["` + event.ApplicationTag + `"]}], after: $after, first: $first) {
    edges { cursor node { id timestamp } }
  }
}`

// ListEventIDs pages through the query index until a page comes back empty.
func (c *LedgerClient) ListEventIDs(ctx context.Context, owner string) ([]NodeRef, error) {
	var (
		refs   []NodeRef
		cursor string
	)
	for {
		page, next, err := c.listPage(ctx, owner, cursor)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return refs, nil
		}
		refs = append(refs, page...)
		cursor = next
	}
}

func (c *LedgerClient) listPage(ctx context.Context, owner, cursor string) ([]NodeRef, string, error) {
	reqBody, err := json.Marshal(map[string]any{
		"query": listQuery,
		"variables": map[string]any{
			"owner": owner,
			"after": cursor,
			"first": ledgerPageSize,
		},
	})
	if err != nil {
		return nil, "", err
	}
	var resp gqlResponse
	if err := c.postJSON(ctx, c.cfg.GatewayURL+"/graphql", reqBody, &resp); err != nil {
		return nil, "", err
	}
	edges := resp.Data.Transactions.Edges
	refs := make([]NodeRef, 0, len(edges))
	last := ""
	for _, e := range edges {
		refs = append(refs, NodeRef{ID: e.Node.ID, Timestamp: e.Node.Timestamp})
		last = e.Cursor
	}
	return refs, last, nil
}

// FetchBodies resolves node ids to record bodies, fanning requests out and
// memoizing results so a re-sync does not refetch immutable records.
func (c *LedgerClient) FetchBodies(ctx context.Context, ids []string) ([]Body, error) {
	out := make([]Body, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bodyFetchParallel)
	for i, id := range ids {
		i, id := i, id
		if v, ok := c.bodies.Get(id); ok {
			out[i] = v.(Body)
			continue
		}
		g.Go(func() error {
			b, err := c.fetchBody(gctx, id)
			if err != nil {
				return err
			}
			c.bodies.Set(id, b, gocache.DefaultExpiration)
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *LedgerClient) fetchBody(ctx context.Context, id string) (Body, error) {
	var b Body
	if err := c.getJSON(ctx, c.cfg.GatewayURL+"/tx/"+id+"/data", &b); err != nil {
		return Body{}, err
	}
	return b, nil
}

// CachedBodies queries the bundler's short-lived cache for records accepted
// for upload but not yet durably indexed.
func (c *LedgerClient) CachedBodies(ctx context.Context, owner string) ([]Body, error) {
	var out []Body
	if err := c.getJSON(ctx, c.cfg.BundlerURL+"/cache/"+owner, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit uploads records in chunks, pacing between chunks. Any chunk failure
// fails the whole submission so the caller retains its queue.
func (c *LedgerClient) Submit(ctx context.Context, owner string, subs []event.Submission) error {
	for start := 0; start < len(subs); start += submitChunkSize {
		end := start + submitChunkSize
		if end > len(subs) {
			end = len(subs)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		body, err := json.Marshal(subs[start:end])
		if err != nil {
			return err
		}
		var ack struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		if err := c.postJSON(ctx, c.cfg.BundlerURL+"/tx", body, &ack); err != nil {
			return err
		}
		if !ack.Success {
			return fmt.Errorf("%w: %s", ErrSubmitRejected, ack.Message)
		}
	}
	return nil
}

func (c *LedgerClient) postJSON(ctx context.Context, url string, body []byte, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *LedgerClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *LedgerClient) do(req *retryablehttp.Request, out any) error {
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
