package names

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Client implements the Names interface by forwarding requests to a remote HTTP server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new HTTP names client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *Client) nameURL(name string) string {
	return fmt.Sprintf("%s/names/%s", c.baseURL, url.PathEscape(name))
}

// Get retrieves the record for a given name.
func (c *Client) Get(name string) (Record, error) {
	return c.Resolve(context.Background(), name)
}

// Resolve is Get bound to ctx.
func (c *Client) Resolve(ctx context.Context, name string) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nameURL(name), nil)
	if err != nil {
		return Record{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Record{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Record{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return Record{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var record Record
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// Put publishes or replaces a name.
func (c *Client) Put(name string, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPut, c.nameURL(name), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// Delete removes a name.
func (c *Client) Delete(name string, expectedAddress string) error {
	req, err := http.NewRequest(http.MethodDelete, c.nameURL(name), nil)
	if err != nil {
		return err
	}
	if expectedAddress != "" {
		req.Header.Set("If-Match", strconv.Quote(expectedAddress))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusPreconditionFailed:
		return ErrPreconditionFailed
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}

// Assert that Client implements the Names interface
var _ Names = (*Client)(nil)
