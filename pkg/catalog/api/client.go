// Package api implements catalog.Service over the catalog REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/imgsync/imgsync/pkg/catalog"
	"github.com/imgsync/imgsync/pkg/errors"
)

const (
	DefaultBaseURL         = "https://connect.squareup.com"
	DefaultAPIVersion      = "2024-10-17"
	DefaultVendorAttribute = "vendor"
	DefaultTimeout         = 30 * time.Second

	codeVersionMismatch = "VERSION_MISMATCH"
)

// Config configures a Client.
type Config struct {
	BaseURL         string
	Token           string
	APIVersion      string
	VendorAttribute string
	Timeout         time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries   int
	RetryWait time.Duration
	// HTTPClient overrides the default client, mostly for tests.
	HTTPClient *http.Client
}

// Client talks to the catalog REST API.
type Client struct {
	baseURL         string
	token           string
	apiVersion      string
	vendorAttribute string
	retries         int
	retryWait       time.Duration
	http            *http.Client
}

var _ catalog.Service = (*Client)(nil)

// NewClient creates a catalog API client
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("catalog access token is required")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, errors.Wrap(err, "invalid catalog base url")
	}

	c := &Client{
		baseURL:         strings.TrimRight(base, "/"),
		token:           cfg.Token,
		apiVersion:      cfg.APIVersion,
		vendorAttribute: cfg.VendorAttribute,
		retries:         cfg.Retries,
		retryWait:       cfg.RetryWait,
		http:            cfg.HTTPClient,
	}
	if c.apiVersion == "" {
		c.apiVersion = DefaultAPIVersion
	}
	if c.vendorAttribute == "" {
		c.vendorAttribute = DefaultVendorAttribute
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if c.retryWait <= 0 {
		c.retryWait = time.Second
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	return c, nil
}

// ListItems fetches one page of ITEM objects.
func (c *Client) ListItems(ctx context.Context, cursor string) (*catalog.Page, error) {
	q := url.Values{"types": {"ITEM"}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var resp listResponse
	err := c.retry(ctx, func() error {
		return c.do(ctx, "list items", http.MethodGet, "/v2/catalog/list?"+q.Encode(), "", nil, &resp)
	})
	if err != nil {
		return nil, err
	}

	page := &catalog.Page{Cursor: resp.Cursor, Items: make([]catalog.RemoteItem, 0, len(resp.Objects))}
	for _, obj := range resp.Objects {
		if obj.Type != "" && obj.Type != "ITEM" {
			continue
		}
		page.Items = append(page.Items, obj.toRemoteItem(c.vendorAttribute))
	}
	return page, nil
}

// GetObject fetches the current version and image references of an object.
func (c *Client) GetObject(ctx context.Context, id string) (*catalog.Object, error) {
	raw, err := c.getRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	var obj wireObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.Wrap(err, "failed to decode catalog object")
	}
	if obj.IsDeleted {
		return nil, errors.NewCatalogError("get object", errors.KindNotFound, http.StatusOK, fmt.Errorf("object %s is deleted", id))
	}
	return &catalog.Object{ID: obj.ID, Version: obj.Version, ImageIDs: obj.imageIDs()}, nil
}

func (c *Client) getRaw(ctx context.Context, id string) (json.RawMessage, error) {
	var resp objectResponse
	err := c.retry(ctx, func() error {
		return c.do(ctx, "get object", http.MethodGet, "/v2/catalog/object/"+url.PathEscape(id), "", nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Object) == 0 {
		return nil, errors.NewCatalogError("get object", errors.KindNotFound, http.StatusOK, fmt.Errorf("object %s missing from response", id))
	}
	return resp.Object, nil
}

// CreateImage uploads image bytes. The idempotency key lets the retry
// replay the same request safely.
func (c *Client) CreateImage(ctx context.Context, req catalog.CreateImageRequest) (string, error) {
	body, contentType, err := encodeImageRequest(req)
	if err != nil {
		return "", err
	}

	var resp imageResponse
	err = c.retry(ctx, func() error {
		return c.do(ctx, "create image", http.MethodPost, "/v2/catalog/images", contentType, body, &resp)
	})
	if err != nil {
		return "", err
	}
	if resp.Image.ID == "" {
		return "", errors.NewCatalogError("create image", errors.KindUnknown, http.StatusOK, fmt.Errorf("response carries no image id"))
	}
	slog.Debug("catalog_image_created", "image_id", resp.Image.ID, "target", req.TargetObjectID, "primary", req.IsPrimary)
	return resp.Image.ID, nil
}

// AssociateImage appends imageID to a variation's image references with an
// upsert pinned to version. It is not retried: a replay after a lost response
// would only ever fail with a version conflict.
func (c *Client) AssociateImage(ctx context.Context, variationID string, version int64, imageID string) error {
	raw, err := c.getRaw(ctx, variationID)
	if err != nil {
		return err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return errors.Wrap(err, "failed to decode catalog object")
	}
	var current int64
	if v, ok := obj["version"]; ok {
		if err := json.Unmarshal(v, &current); err != nil {
			return errors.Wrap(err, "failed to decode object version")
		}
	}
	if current != version {
		return errors.NewCatalogError("associate image", errors.KindVersionConflict, http.StatusConflict,
			fmt.Errorf("version %d is stale, current %d", version, current))
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal(obj["item_variation_data"], &data); err != nil || data == nil {
		return errors.NewCatalogError("associate image", errors.KindUnknown, 0, fmt.Errorf("object %s is not a variation", variationID))
	}
	var images []string
	if v, ok := data["image_ids"]; ok {
		if err := json.Unmarshal(v, &images); err != nil {
			return errors.Wrap(err, "failed to decode image ids")
		}
	}
	images = append(images, imageID)
	if data["image_ids"], err = json.Marshal(images); err != nil {
		return err
	}
	if obj["item_variation_data"], err = json.Marshal(data); err != nil {
		return err
	}
	updated, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	body, err := json.Marshal(upsertRequest{IdempotencyKey: uuid.NewString(), Object: updated})
	if err != nil {
		return err
	}
	return c.do(ctx, "associate image", http.MethodPost, "/v2/catalog/object", "application/json", body, nil)
}

// retry runs op once more per configured retry, only after transient failures.
func (c *Client) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryWait), uint64(c.retries)), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !errors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		if err != nil {
			slog.Warn("catalog_request_retry", "error", err)
		}
		return err
	}, b)
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Square-Version", c.apiVersion)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewCatalogError(op, errors.KindTransient, 0, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewCatalogError(op, errors.KindTransient, resp.StatusCode, err)
	}

	if resp.StatusCode >= 300 {
		return classify(op, resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return errors.NewCatalogError(op, errors.KindUnknown, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// classify maps an error response to the taxonomy.
func classify(op string, status int, payload []byte) error {
	var body struct {
		Errors []wireError `json:"errors"`
	}
	_ = json.Unmarshal(payload, &body)

	detail := strings.TrimSpace(string(payload))
	for _, e := range body.Errors {
		if e.Code == codeVersionMismatch {
			return errors.NewCatalogError(op, errors.KindVersionConflict, status, fmt.Errorf("%s", e.Detail))
		}
	}
	if len(body.Errors) > 0 {
		detail = body.Errors[0].Code + ": " + body.Errors[0].Detail
	}

	kind := errors.KindUnknown
	switch {
	case status == http.StatusNotFound:
		kind = errors.KindNotFound
	case status == http.StatusConflict:
		kind = errors.KindVersionConflict
	case status == http.StatusTooManyRequests, status >= 500:
		kind = errors.KindTransient
	}
	return errors.NewCatalogError(op, kind, status, fmt.Errorf("%s", detail))
}

func encodeImageRequest(req catalog.CreateImageRequest) ([]byte, string, error) {
	meta := imageRequest{
		IdempotencyKey: req.IdempotencyKey,
		ObjectID:       req.TargetObjectID,
		IsPrimary:      req.IsPrimary,
		Image:          wireImage{Type: "IMAGE", ID: "#image"},
	}
	meta.Image.ImageData.Name = req.Name

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="request"`)
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(metaJSON); err != nil {
		return nil, "", err
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(req.Data)
	}
	h = make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image_file"; filename=%q`, req.Name))
	h.Set("Content-Type", contentType)
	part, err = w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
