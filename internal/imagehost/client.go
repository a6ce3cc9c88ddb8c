// Package imagehost talks to a Cloudinary-style image hosting API.  Every
// request is signed on the server with the account secret; clients never
// see it.
package imagehost

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/restaurant-orders/internal/config"
)

// ErrNotConfigured is returned when the cloud name or credentials are
// missing.
var ErrNotConfigured = errors.New("image host not configured")

type Client struct {
	BaseURL    string
	CloudName  string
	APIKey     string
	APISecret  string
	Preset     string
	Folder     string
	HTTPClient *http.Client

	now func() time.Time
}

// New builds a Client from configuration.  It returns nil when the image
// host is not configured so callers can run without uploads.
func New(cfg config.ImageHostConfig) *Client {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil
	}
	return &Client{
		BaseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		CloudName: cfg.CloudName,
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		Preset:    cfg.UploadPreset,
		Folder:    cfg.Folder,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type destroyResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Sign returns the hex SHA-1 of the params sorted by key and joined as
// k=v pairs with '&', followed by secret.  Empty values are skipped.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

func (c *Client) endpoint(action string) string {
	return fmt.Sprintf("%s/%s/image/%s", c.BaseURL, c.CloudName, action)
}

func (c *Client) timestamp() string {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return strconv.FormatInt(now().Unix(), 10)
}

// Upload sends the image as a signed multipart upload (file, preset,
// folder) and returns its delivery URL and public id.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (string, string, error) {
	if c == nil {
		return "", "", ErrNotConfigured
	}
	params := map[string]string{
		"folder":        c.Folder,
		"upload_preset": c.Preset,
		"timestamp":     c.timestamp(),
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", "", fmt.Errorf("failed to read image: %w", err)
	}
	for k, v := range params {
		if v != "" {
			_ = mw.WriteField(k, v)
		}
	}
	_ = mw.WriteField("api_key", c.APIKey)
	_ = mw.WriteField("signature", Sign(params, c.APISecret))
	if err := mw.Close(); err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload"), &body)
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out uploadResponse
	if err := c.do(req, &out); err != nil {
		return "", "", err
	}
	if out.Error != nil {
		return "", "", fmt.Errorf("imagehost: upload: %s", out.Error.Message)
	}
	if out.SecureURL == "" || out.PublicID == "" {
		return "", "", errors.New("imagehost: upload: empty response")
	}
	return out.SecureURL, out.PublicID, nil
}

// Destroy removes the image with publicID.  An image the host no longer
// knows is not an error.
func (c *Client) Destroy(ctx context.Context, publicID string) error {
	if c == nil {
		return ErrNotConfigured
	}
	params := map[string]string{
		"public_id": publicID,
		"timestamp": c.timestamp(),
	}
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("api_key", c.APIKey)
	form.Set("signature", Sign(params, c.APISecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out destroyResponse
	if err := c.do(req, &out); err != nil {
		return err
	}
	if out.Error != nil {
		return fmt.Errorf("imagehost: destroy: %s", out.Error.Message)
	}
	switch out.Result {
	case "ok", "not found":
		return nil
	}
	return fmt.Errorf("imagehost: destroy %s: %s", publicID, out.Result)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}
