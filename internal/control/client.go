package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Client sends control messages to a remote Server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new HTTP control client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// SetEncryption registers decryption parameters for a resource.
func (c *Client) SetEncryption(ctx context.Context, resourceID string, key, iv []byte, resourceURL string, totalSize int64, mimeType string) error {
	return c.Send(ctx, Message{
		Type:        SetEncryption,
		ResourceID:  resourceID,
		Key:         key,
		IV:          iv,
		ResourceURL: resourceURL,
		TotalSize:   totalSize,
		MimeType:    mimeType,
	})
}

// RemoveEncryption drops the parameters of a resource.
func (c *Client) RemoveEncryption(ctx context.Context, resourceID string) error {
	return c.Send(ctx, Message{Type: RemoveEncryption, ResourceID: resourceID})
}

// Send posts a message and waits for its acknowledgment.
func (c *Client) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/control", c.baseURL), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if !ack.Success {
		if ack.Error == "" {
			return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		}
		return errors.New(ack.Error)
	}
	return nil
}
