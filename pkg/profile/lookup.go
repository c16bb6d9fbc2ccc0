package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"contactbook_backend/pkg/apperror"
	"contactbook_backend/pkg/logger"
)

const DefaultHost = "linkedin-data-api.p.rapidapi.com"

// Profile is the subset of a public profile used to prefill a contact.
type Profile struct {
	Name     string `json:"name"`
	JobTitle string `json:"jobTitle"`
	ImageURL string `json:"imageUrl"`
	About    string `json:"about"`
}

type Config struct {
	APIKey  string
	Host    string
	Timeout time.Duration
	// BaseURL overrides https://<Host>; tests point it at a local server.
	BaseURL string
}

type Client struct {
	apiKey  string
	host    string
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://" + cfg.Host
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		host:    cfg.Host,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     log,
	}
}

// Lookup fetches the profile behind profileURL.
func (c *Client) Lookup(ctx context.Context, profileURL string) (*Profile, error) {
	if strings.TrimSpace(profileURL) == "" {
		return nil, apperror.InvalidInput("invalid profile lookup",
			apperror.FieldError{Field: "url", Message: "is required"})
	}
	if c.apiKey == "" {
		return nil, apperror.New(apperror.KindUpstream, "profile lookup is not configured")
	}

	endpoint := c.baseURL + "/get-profile-data-by-url?url=" + url.QueryEscape(profileURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindInvalidInput, "invalid profile url")
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.host)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("profile lookup failed", "url", profileURL, "error", err)
		if isTimeout(err) {
			return nil, apperror.Wrap(err, apperror.KindUpstreamTimeout, "profile lookup timed out")
		}
		return nil, apperror.Upstream(err, "failed to fetch profile")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperror.Upstream(err, "failed to read profile")
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("profile lookup rejected", "url", profileURL, "status", resp.StatusCode)
		return nil, apperror.Upstream(fmt.Errorf("profile api status %d", resp.StatusCode), "failed to fetch profile")
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperror.Upstream(err, "profile api returned malformed data")
	}
	if len(raw) == 0 {
		return nil, apperror.Upstream(errors.New("empty profile"), "no data received from profile api")
	}
	return Extract(raw), nil
}

// Extract maps the varying key sets the provider returns.
func Extract(raw map[string]interface{}) *Profile {
	return &Profile{
		ImageURL: first(raw, "profile_pic_url", "profilePicture", "image_url"),
		JobTitle: first(raw, "headline", "current_job_title", "job_title"),
		About:    first(raw, "summary", "description", "about"),
		Name:     name(raw),
	}
}

func name(raw map[string]interface{}) string {
	if n := first(raw, "full_name", "fullName", "name"); n != "" {
		return n
	}
	for _, pair := range [][2]string{{"firstName", "lastName"}, {"first_name", "last_name"}} {
		firstName, lastName := str(raw[pair[0]]), str(raw[pair[1]])
		if firstName != "" && lastName != "" {
			return firstName + " " + lastName
		}
	}
	return ""
}

func first(raw map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := str(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

func str(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
