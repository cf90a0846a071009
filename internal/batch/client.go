// Package batch fetches the server-computed hit documents: the custom
// (target) document, the daily movers document, and the 52-week high/low
// document. Each document fails independently; a fetch or decode error
// leaves that document absent without disturbing the others.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/iamkanga/asxtracker-sub003/internal/logger"
	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// Client fetches the three batch documents.
type Client struct {
	customURL  string
	moversURL  string
	hiloURL    string
	httpClient *http.Client
}

// NewClient creates a batch document client. Empty URLs disable the
// corresponding document.
func NewClient(customURL, moversURL, hiloURL string, timeout time.Duration) *Client {
	return &Client{
		customURL: customURL,
		moversURL: moversURL,
		hiloURL:   hiloURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchDocuments retrieves all three documents. A document whose fetch or
// decode fails comes back nil; the error is logged, not returned, so one
// broken feed never blanks the rest.
func (c *Client) FetchDocuments(ctx context.Context) models.BatchDocuments {
	var docs models.BatchDocuments
	docs.Custom = c.fetchDoc(ctx, "custom", c.customURL)
	docs.Movers = c.fetchDoc(ctx, "movers", c.moversURL)
	docs.HiLo = c.fetchDoc(ctx, "hilo", c.hiloURL)
	return docs
}

func (c *Client) fetchDoc(ctx context.Context, name, url string) []models.RawRecord {
	if url == "" {
		return nil
	}
	records, err := c.fetchRecords(ctx, url)
	if err != nil {
		logger.Warn("batch document %s unavailable: %v", name, err)
		return nil
	}
	return records
}

func (c *Client) fetchRecords(ctx context.Context, url string) ([]models.RawRecord, error) {
	resp, err := c.doRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var payload json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return decodeRecords(payload)
}

// decodeRecords accepts either a bare array of records or an object wrapping
// the array under a known key. Server-side revisions have shipped both.
func decodeRecords(payload json.RawMessage) ([]models.RawRecord, error) {
	var records []models.RawRecord
	if err := json.Unmarshal(payload, &records); err == nil {
		return records, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return nil, fmt.Errorf("document is neither array nor object")
	}
	for _, key := range []string{"hits", "records", "data", "items"} {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("failed to decode %q field: %w", key, err)
		}
		return records, nil
	}
	return nil, fmt.Errorf("document has no recognized record array")
}

// doRequest performs HTTP request with retry logic
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	maxRetries := 3
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
