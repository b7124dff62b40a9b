package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"stocksync/internal/config"
)

var (
	// ErrSourceUnavailable means the storage provider could not be reached
	// or refused our credentials.
	ErrSourceUnavailable = errors.New("feed source unavailable")

	// ErrFolderNotFound means the monitored folder does not exist. Distinct
	// from unavailability: the run can finish cleanly with zero files.
	ErrFolderNotFound = errors.New("monitored folder not found")
)

const (
	defaultAPIBaseURL     = "https://api.dropboxapi.com"
	defaultContentBaseURL = "https://content.dropboxapi.com"

	// Refreshed tokens are reused until shortly before expiry.
	tokenExpirySlack = 60 * time.Second
)

// Entry is one file in the monitored folder listing.
type Entry struct {
	Tag            string    `json:".tag"`
	Name           string    `json:"name"`
	PathLower      string    `json:"path_lower"`
	Rev            string    `json:"rev"`
	Size           int64     `json:"size"`
	ServerModified time.Time `json:"server_modified"`
}

// Revision is the change marker for an entry. The provider's rev string is
// preferred; server-modified time is the fallback for providers without one.
func (e Entry) Revision() string {
	if e.Rev != "" {
		return e.Rev
	}
	return e.ServerModified.UTC().Format(time.RFC3339)
}

// Client talks to the storage provider's RPC API. One instance per run;
// not safe for concurrent use.
type Client struct {
	apiURL     string
	contentURL string
	cfg        config.SourceConfig
	httpc      *http.Client
	logger     *zap.Logger

	// Cached short-lived token from the refresh flow.
	token       string
	tokenExpiry time.Time
}

// NewClient creates a source client from configuration.
func NewClient(cfg config.SourceConfig, logger *zap.Logger) *Client {
	return &Client{
		apiURL:     defaultAPIBaseURL,
		contentURL: defaultContentBaseURL,
		cfg:        cfg,
		httpc:      &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

// ListFolder lists every file under path, following cursor pagination
// until the provider reports no more entries. Non-file entries (folders,
// deletions) are filtered out.
func (c *Client) ListFolder(ctx context.Context, path string) ([]Entry, error) {
	type listResult struct {
		Entries []Entry `json:"entries"`
		Cursor  string  `json:"cursor"`
		HasMore bool    `json:"has_more"`
	}

	body, err := c.rpc(ctx, "/2/files/list_folder", map[string]any{
		"path":      path,
		"recursive": true,
	})
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.status == http.StatusConflict && strings.Contains(apiErr.body, "not_found") {
			return nil, fmt.Errorf("%w: %s", ErrFolderNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	var result listResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode folder listing: %w", err)
	}

	entries := filesOnly(result.Entries)
	for result.HasMore {
		body, err := c.rpc(ctx, "/2/files/list_folder/continue", map[string]any{
			"cursor": result.Cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		result = listResult{}
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode folder listing page: %w", err)
		}
		entries = append(entries, filesOnly(result.Entries)...)
	}
	return entries, nil
}

// Download streams the file at path into w.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	arg, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return fmt.Errorf("failed to encode download argument: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentURL+"/2/files/download", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Dropbox-API-Arg", string(arg))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("download of %s failed with status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download of %s interrupted: %w", path, err)
	}
	return nil
}

// TestConnection verifies credentials against the account endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	body, err := c.rpc(ctx, "/2/users/get_current_account", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	var account struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &account); err == nil && account.Email != "" {
		c.logger.Info("Feed source connection verified",
			zap.String("account", account.Email),
		)
	}
	return nil
}

// rpc performs one JSON RPC call against the API host. A nil payload sends
// the literal "null" body some endpoints require.
func (c *Client) rpc(ctx context.Context, path string, payload any) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apiError{status: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

// accessToken returns the static token, or runs the OAuth refresh flow when
// a refresh token is configured, caching the short-lived result.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.cfg.RefreshToken == "" {
		return c.cfg.AccessToken, nil
	}
	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-tokenExpirySlack)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.cfg.RefreshToken)
	form.Set("client_id", c.cfg.AppKey)
	form.Set("client_secret", c.cfg.AppSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token refresh failed: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token refresh returned status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: token refresh returned no access token", ErrSourceUnavailable)
	}

	c.token = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	c.logger.Debug("Source access token refreshed",
		zap.Time("expires", c.tokenExpiry),
	)
	return c.token, nil
}

type apiError struct {
	status int
	body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("source api error %d: %s", e.status, e.body)
}

func filesOnly(entries []Entry) []Entry {
	files := entries[:0:0]
	for _, e := range entries {
		if e.Tag == "file" {
			files = append(files, e)
		}
	}
	return files
}
