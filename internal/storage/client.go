package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Client implements the Storage interface by forwarding requests to a remote
// storage node. GetRange is the read path used by the decryption proxy.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new HTTP storage client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (c *Client) blobURL(address string) string {
	return fmt.Sprintf("%s/storage/%s", c.baseURL, address)
}

// Has checks if the storage contains the given address.
func (c *Client) Has(address string) bool {
	_, ok := c.Size(address)
	return ok
}

// GetRange requests bytes start..end (inclusive) of a blob. The returned
// status is the node's answer, 200 or 206 on success; any other status is
// returned with a nil body.
func (c *Client) GetRange(ctx context.Context, address string, start, end int64) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.blobURL(address), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, resp.StatusCode, nil
	}
	return resp.Body, resp.StatusCode, nil
}

// Open reads the whole blob into memory. Use GetRange for large blobs.
func (c *Client) Open(address string) (io.ReadSeekCloser, bool) {
	resp, err := c.httpClient.Get(c.blobURL(address))
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	mem := NewInMemoryStorage()
	addr, err := mem.Store(resp.Body)
	if err != nil || addr != address {
		return nil, false
	}
	return mem.Open(addr)
}

// Store saves data and returns its content-based address.
func (c *Client) Store(r io.Reader) (string, error) {
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/storage/", c.baseURL), r)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// StoreAt saves data at the specified address.
func (c *Client) StoreAt(address string, r io.Reader) (bool, error) {
	req, err := http.NewRequest(http.MethodPut, c.blobURL(address), r)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK, nil
}

// Size returns the size of the data at the given address.
func (c *Client) Size(address string) (int64, bool) {
	req, err := http.NewRequest(http.MethodHead, c.blobURL(address), nil)
	if err != nil {
		return 0, false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return 0, false
	}
	return size, true
}

// Assert that Client implements the Storage interface
var _ Storage = (*Client)(nil)
