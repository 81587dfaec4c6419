package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"FireBox/internal/dto"
	"FireBox/internal/syncd/fingerprint"

	"github.com/sethvargo/go-retry"
)

// Client talks to the sync server's JSON API and to the object store
// through the presigned handles the server issues. Transient failures
// (network errors, 5xx) are retried with exponential backoff.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries uint64

	mu       sync.RWMutex
	deviceID string
	secret   string
	token    string
}

// StatusError reports a non-success HTTP status from the server or the
// object store.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether a retry may succeed.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

// envelope is the server's response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// New builds a client for a server base URL.
func New(baseURL, deviceID, secret string, timeout time.Duration, maxRetries int) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: uint64(maxRetries),
		deviceID:   deviceID,
		secret:     secret,
	}
}

// DeviceID returns the ID this client authenticates as.
func (c *Client) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceID
}

func (c *Client) backoff() retry.Backoff {
	b := retry.NewExponential(500 * time.Millisecond)
	b = retry.WithMaxRetries(c.maxRetries, b)
	return b
}

// Register enrolls the device. If the server already knows the ID the
// caller falls back to Login.
func (c *Client) Register(ctx context.Context, name string) error {
	c.mu.RLock()
	req := dto.RegisterDeviceRequest{DeviceID: c.deviceID, Name: name, Secret: c.secret}
	c.mu.RUnlock()

	var resp dto.TokenResponse
	if err := c.postJSON(ctx, "/api/device/register", req, &resp, false); err != nil {
		return err
	}
	c.mu.Lock()
	c.deviceID = resp.DeviceID
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

// Login authenticates and caches the bearer token.
func (c *Client) Login(ctx context.Context) error {
	c.mu.RLock()
	req := dto.LoginDeviceRequest{DeviceID: c.deviceID, Secret: c.secret}
	c.mu.RUnlock()

	var resp dto.TokenResponse
	if err := c.postJSON(ctx, "/api/device/login", req, &resp, false); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = resp.Token
	c.mu.Unlock()
	return nil
}

// UpsertFolder reports a folder to the server.
func (c *Client) UpsertFolder(ctx context.Context, req dto.FolderRequest) error {
	var resp dto.FolderResponse
	return c.postJSON(ctx, "/api/folder", req, &resp, true)
}

// Negotiate opens or resumes an upload for one file.
func (c *Client) Negotiate(ctx context.Context, req dto.NegotiateRequest) (*dto.NegotiateResponse, error) {
	var resp dto.NegotiateResponse
	if err := c.postJSON(ctx, "/api/file/negotiate", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Confirm commits a file's complete manifest.
func (c *Client) Confirm(ctx context.Context, req dto.ConfirmRequest) (*dto.ConfirmResponse, error) {
	var resp dto.ConfirmResponse
	if err := c.postJSON(ctx, "/api/file/confirm", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DownloadURLs requests presigned GET handles for chunks.
func (c *Client) DownloadURLs(ctx context.Context, req dto.DownloadRequest) (*dto.DownloadResponse, error) {
	var resp dto.DownloadResponse
	if err := c.postJSON(ctx, "/api/file/download", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Sync polls the server with the stored cursor.
func (c *Client) Sync(ctx context.Context, req dto.SyncRequest) (*dto.SyncResponse, error) {
	var resp dto.SyncResponse
	if err := c.postJSON(ctx, "/api/sync", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PutChunk uploads chunk bytes through a presigned PUT handle.
func (c *Client) PutChunk(ctx context.Context, uploadURL string, data []byte) error {
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.ContentLength = int64(len(data))
		req.Header.Set("Content-Type", "application/octet-stream")
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
			if serr.Transient() {
				return retry.RetryableError(serr)
			}
			return serr
		}
		return nil
	})
}

// FetchChunk downloads chunk bytes through a presigned GET handle and
// verifies them against the expected fingerprint before returning.
// Tampered or truncated payloads are never handed to the caller.
func (c *Client) FetchChunk(ctx context.Context, downloadURL, expectFingerprint string) ([]byte, error) {
	var data []byte
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
			if serr.Transient() {
				return retry.RetryableError(serr)
			}
			return serr
		}
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		if got := fingerprint.Bytes(payload); got != expectFingerprint {
			return retry.RetryableError(
				fmt.Errorf("chunk fingerprint mismatch: want %s got %s", expectFingerprint, got))
		}
		data = payload
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}, authed bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if authed {
			c.mu.RLock()
			token := c.token
			c.mu.RUnlock()
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		// An expired token is refreshed once in place, then the call
		// is retried through the same backoff loop.
		if authed && resp.StatusCode == http.StatusUnauthorized {
			if lerr := c.Login(ctx); lerr != nil {
				return lerr
			}
			return retry.RetryableError(&StatusError{StatusCode: resp.StatusCode, Body: "token refreshed"})
		}
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode >= 300 {
			serr := &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
			if serr.Transient() {
				return retry.RetryableError(serr)
			}
			return serr
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("malformed response: %w", err)
		}
		if env.Code != 0 {
			return fmt.Errorf("server error: %s", env.Msg)
		}
		if out != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return fmt.Errorf("malformed response data: %w", err)
			}
		}
		return nil
	})
}
