package wikidata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
)

// APIURL is the Wikidata action API endpoint.
const APIURL = "https://www.wikidata.org/w/api.php"

// Credentials hold the OAuth1 consumer and access pair for action-API
// writes. The consumer pair comes from configuration, the access pair from
// the caller's session.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

func (c Credentials) validate() error {
	if strings.TrimSpace(c.ConsumerKey) == "" || strings.TrimSpace(c.ConsumerSecret) == "" {
		return fmt.Errorf("%w: OAuth consumer credentials are not configured", ErrWrite)
	}
	if strings.TrimSpace(c.AccessToken) == "" || strings.TrimSpace(c.AccessSecret) == "" {
		return fmt.Errorf("%w: OAuth access credentials are missing, sign in before editing", ErrWrite)
	}
	return nil
}

// Session is an authenticated action-API client bound to one api.php
// endpoint. Every request is OAuth1-signed.
type Session struct {
	http      *http.Client
	apiURL    string
	userAgent string
}

// NewSession validates the credentials and builds a signed HTTP client.
func NewSession(apiURL string, creds Credentials, userAgent string, timeout time.Duration) (*Session, error) {
	if err := creds.validate(); err != nil {
		return nil, err
	}
	if apiURL == "" {
		apiURL = APIURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	httpClient := cfg.Client(oauth1.NoContext, token)
	httpClient.Timeout = timeout

	return &Session{http: httpClient, apiURL: apiURL, userAgent: userAgent}, nil
}

// Get performs an action-API GET and decodes the payload.
func (s *Session) Get(ctx context.Context, params url.Values) (map[string]any, error) {
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return s.do(req)
}

// Post performs a form-encoded action-API POST and decodes the payload.
func (s *Session) Post(ctx context.Context, params url.Values) (map[string]any, error) {
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

// PostMultipart performs a multipart/form-data POST carrying one file part,
// used for action=upload.
func (s *Session) PostMultipart(ctx context.Context, params url.Values, fileField, filename string, file io.Reader) (map[string]any, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	params.Set("format", "json")
	for key, values := range params {
		for _, value := range values {
			if err := mw.WriteField(key, value); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrWrite, err)
			}
		}
	}
	part, err := mw.CreateFormFile(fileField, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(req)
}

func (s *Session) do(req *http.Request) (map[string]any, error) {
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrWrite, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read failed: %v", ErrWrite, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrWrite, resp.StatusCode, bodyPreview(body))
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: service did not return JSON: %s", ErrWrite, bodyPreview(body))
	}

	// The action API reports failures inside a 200 response.
	if errPayload, ok := payload["error"].(map[string]any); ok {
		code := strings.TrimSpace(stringValue(errPayload["code"]))
		if code == "" {
			code = "unknown"
		}
		info := strings.TrimSpace(stringValue(errPayload["info"]))
		if info == "" {
			info = "unknown error"
		}
		return nil, fmt.Errorf("%w: API error (%s): %s", ErrWrite, code, info)
	}
	return payload, nil
}

// CSRFToken fetches the edit token for this session.
func (s *Session) CSRFToken(ctx context.Context) (string, error) {
	payload, err := s.Get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {"csrf"},
	})
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(stringPath(payload, "query", "tokens", "csrftoken"))
	if token == "" {
		return "", fmt.Errorf("%w: could not fetch CSRF token", ErrWrite)
	}
	return token, nil
}

// Username resolves the authenticated account name. Empty means the
// credentials did not map to a logged-in user.
func (s *Session) Username(ctx context.Context) (string, error) {
	payload, err := s.Get(ctx, url.Values{
		"action": {"query"},
		"meta":   {"userinfo"},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stringPath(payload, "query", "userinfo", "name")), nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// stringPath walks nested map[string]any keys and returns the string leaf,
// or "" when any step is missing.
func stringPath(payload map[string]any, keys ...string) string {
	current := payload
	for i, key := range keys {
		if i == len(keys)-1 {
			return stringValue(current[key])
		}
		next, ok := current[key].(map[string]any)
		if !ok {
			return ""
		}
		current = next
	}
	return ""
}
