package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/beizuri/posedge/internal/config"
)

// Per-call timeouts. Bootstrap ships the whole catalog and gets the most
// time; the health probe must fail fast so an offline terminal does not
// stall its sync loop.
const (
	healthTimeout    = 5 * time.Second
	bootstrapTimeout = 60 * time.Second
	defaultTimeout   = 30 * time.Second
)

// Client talks to the central server's sync API. It is stateless and never
// lets a transport error escape: every failure (network, non-2xx status,
// malformed body) collapses to a nil result, which callers read as
// "offline, try again next cycle".
type Client struct {
	baseURL  string
	apiToken string
	storeID  string

	probeClient     *http.Client
	bootstrapClient *http.Client
	httpClient      *http.Client
}

// NewClient creates a sync API client from the terminal configuration
func NewClient(cfg config.SyncConfig) *Client {
	return &Client{
		baseURL:         cfg.ServerURL,
		apiToken:        cfg.APIToken,
		storeID:         cfg.StoreID,
		probeClient:     &http.Client{Timeout: healthTimeout},
		bootstrapClient: &http.Client{Timeout: bootstrapTimeout},
		httpClient:      &http.Client{Timeout: defaultTimeout},
	}
}

// Health probes the server's liveness endpoint
func (c *Client) Health() bool {
	var resp healthResponse
	if err := c.get(c.probeClient, "/api/sync/health/", nil, &resp); err != nil {
		return false
	}
	return resp.Status == "ok"
}

// Bootstrap fetches the full active catalog for this store. Returns nil on
// any failure.
func (c *Client) Bootstrap() *CatalogSnapshot {
	body := map[string]interface{}{"store_id": c.storeID}

	var snapshot CatalogSnapshot
	if err := c.post(c.bootstrapClient, "/api/sync/initial_sync/", body, &snapshot); err != nil {
		log.Printf("Sync API: initial sync failed: %v", err)
		return nil
	}
	return &snapshot
}

// PullCatalog fetches the catalog snapshot if anything changed since the
// given watermark. Returns nil on any failure; a non-nil snapshot with
// HasUpdates=false means the poll was empty.
func (c *Client) PullCatalog(since time.Time) *CatalogSnapshot {
	params := url.Values{}
	params.Set("since", since.UTC().Format(time.RFC3339))
	params.Set("store_id", c.storeID)

	var snapshot CatalogSnapshot
	if err := c.get(c.httpClient, "/api/sync/pull_updates/", params, &snapshot); err != nil {
		log.Printf("Sync API: pull updates failed: %v", err)
		return nil
	}
	return &snapshot
}

// PullSales fetches sales recorded by other terminals since the watermark
func (c *Client) PullSales(since time.Time) []SaleRecord {
	params := url.Values{}
	params.Set("since", since.UTC().Format(time.RFC3339))
	params.Set("store_id", c.storeID)

	var resp pullSalesResponse
	if err := c.get(c.httpClient, "/api/sync/pull_sales/", params, &resp); err != nil {
		log.Printf("Sync API: pull sales failed: %v", err)
		return nil
	}
	if resp.Sales == nil {
		resp.Sales = []SaleRecord{}
	}
	return resp.Sales
}

// PullReturns fetches returns recorded by other terminals since the watermark
func (c *Client) PullReturns(since time.Time) []ReturnRecord {
	params := url.Values{}
	params.Set("since", since.UTC().Format(time.RFC3339))
	params.Set("store_id", c.storeID)

	var resp pullReturnsResponse
	if err := c.get(c.httpClient, "/api/sync/pull_returns/", params, &resp); err != nil {
		log.Printf("Sync API: pull returns failed: %v", err)
		return nil
	}
	if resp.Returns == nil {
		resp.Returns = []ReturnRecord{}
	}
	return resp.Returns
}

// PushSales uploads a batch of completed sales. The server upserts by sale
// number, so a retried batch never double-books.
func (c *Client) PushSales(batch []SaleRecord) *PushResult {
	body := map[string]interface{}{
		"store_id": c.storeID,
		"sales":    batch,
	}

	var result PushResult
	if err := c.post(c.httpClient, "/api/sync/push_sales/", body, &result); err != nil {
		log.Printf("Sync API: push sales failed: %v", err)
		return nil
	}
	return &result
}

// PushReturns uploads a batch of returns, upserted by return number
func (c *Client) PushReturns(batch []ReturnRecord) *PushResult {
	body := map[string]interface{}{
		"store_id": c.storeID,
		"returns":  batch,
	}

	var result PushResult
	if err := c.post(c.httpClient, "/api/sync/push_returns/", body, &result); err != nil {
		log.Printf("Sync API: push returns failed: %v", err)
		return nil
	}
	return &result
}

// get performs an authenticated GET and decodes the JSON response
func (c *Client) get(client *http.Client, path string, params url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	return c.do(client, req, out)
}

// post performs an authenticated POST with a JSON body
func (c *Client) post(client *http.Client, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	return c.do(client, req, out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Token "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) do(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed response from %s: %w", req.URL.Path, err)
	}
	return nil
}
