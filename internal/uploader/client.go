package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client wraps HTTP calls to the BucketDrive API plus the raw presigned
// PUTs against object storage.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a Client from a base URL (e.g. http://localhost:8080) and bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/") + "/api",
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 5 * time.Minute, // generous for large uploads
		},
	}
}

// Response is the standard { success, data, error } envelope.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

// APIError is returned when the server sends a non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// GrantItem asks for one presigned PUT, keyed by the fully-qualified
// storage key the orchestrator derived for the file.
type GrantItem struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Size        string `json:"size"`
	ContentType string `json:"contentType"`
}

// Grant is one issued presigned PUT. FileName and Key reflect any
// collision rename the server applied.
type Grant struct {
	FileName string `json:"fileName"`
	Key      string `json:"key"`
	URL      string `json:"url"`
}

// FolderRecord mirrors the persisted Folder returned by the API.
type FolderRecord struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parentID,omitempty"`
	Size     string     `json:"size"`
}

// FileInput is one uploaded file to persist.
type FileInput struct {
	Name       string `json:"name"`
	StorageKey string `json:"storageKey"`
	Size       string `json:"size"`
	MimeType   string `json:"mimeType"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: string(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Get performs a GET against an API path and decodes the envelope into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, out)
}

// Post performs a JSON POST against an API path.
func (c *Client) Post(ctx context.Context, path string, body interface{}, out interface{}) error {
	return c.postJSON(ctx, path, body, out)
}

// Del performs a DELETE against an API path.
func (c *Client) Del(ctx context.Context, path string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.doJSON(req, out)
}

// Precheck validates the whole run against the server's quota ceilings
// before any byte moves.
func (c *Client) Precheck(ctx context.Context, bucketID uuid.UUID, totalBytes string, fileCount int) error {
	body := map[string]interface{}{
		"bucketID":   bucketID.String(),
		"totalBytes": totalBytes,
		"fileCount":  fileCount,
	}
	err := c.postJSON(ctx, "/uploads/precheck", body, nil)
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusRequestEntityTooLarge {
		return fmt.Errorf("%w: %s", ErrQuotaRejected, apiErr.Message)
	}
	return err
}

// GrantUploads requests one presigned PUT per item. Grants come back in
// request order.
func (c *Client) GrantUploads(ctx context.Context, bucketID uuid.UUID, items []GrantItem) ([]Grant, error) {
	body := map[string]interface{}{
		"bucketID": bucketID.String(),
		"items":    items,
	}
	var resp Response[struct {
		Grants []Grant `json:"grants"`
	}]
	if err := c.postJSON(ctx, "/uploads/grants", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Grants) != len(items) {
		return nil, fmt.Errorf("expected %d grants, got %d", len(items), len(resp.Data.Grants))
	}
	return resp.Data.Grants, nil
}

// CreateFolder persists a folder record before any of its files upload.
func (c *Client) CreateFolder(ctx context.Context, bucketID uuid.UUID, name string, parentID *uuid.UUID) (*FolderRecord, error) {
	body := map[string]interface{}{
		"bucketID": bucketID.String(),
		"name":     name,
	}
	if parentID != nil {
		body["parentID"] = parentID.String()
	}
	var resp Response[FolderRecord]
	if err := c.postJSON(ctx, "/folders", body, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// CreateFiles persists File records for one successfully uploaded batch.
func (c *Client) CreateFiles(ctx context.Context, bucketID uuid.UUID, parentID *uuid.UUID, files []FileInput) error {
	body := map[string]interface{}{
		"bucketID": bucketID.String(),
		"files":    files,
	}
	if parentID != nil {
		body["parentID"] = parentID.String()
	}
	return c.postJSON(ctx, "/files/batch", body, nil)
}

// CommitSizes pushes the accumulated folder-id to byte-delta map in one
// batched additive update.
func (c *Client) CommitSizes(ctx context.Context, deltas map[string]string) error {
	return c.postJSON(ctx, "/folders/sizes", map[string]interface{}{"deltas": deltas}, nil)
}

// FolderPath returns the breadcrumb chain from root to the folder.
func (c *Client) FolderPath(ctx context.Context, folderID uuid.UUID) ([]FolderRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/folders/"+folderID.String()+"/path", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	var resp Response[[]FolderRecord]
	if err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// PutObject performs the raw presigned PUT of one payload.
func (c *Client) PutObject(ctx context.Context, url string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Message: string(data)}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
