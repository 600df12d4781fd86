// Package api talks to the project-files service that lists the releases
// published for a plugin project.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultEndpoint lists files for one project; %d is the project id.
const DefaultEndpoint = "https://api.curseforge.com/servermods/files?projectIds=%d"

// maxResponseBytes bounds the metadata body. Release lists are small.
const maxResponseBytes = 4 << 20

var (
	ErrEmptyResponse    = errors.New("api: empty response body")
	ErrInvalidProjectID = errors.New("api: invalid project id")
	ErrInvalidEndpoint  = errors.New("api: invalid endpoint")
)

// File is one published release.
type File struct {
	Name        string `json:"name"`
	FileName    string `json:"fileName"`
	DownloadURL string `json:"downloadUrl"`
	FileURL     string `json:"fileUrl,omitempty"`
	ReleaseType string `json:"releaseType,omitempty"`
	GameVersion string `json:"gameVersion,omitempty"`
	ProjectID   int    `json:"projectId,omitempty"`
	// MD5 is the hex digest of the artifact when the service publishes one.
	MD5 string `json:"md5,omitempty"`
}

// UnmarshalJSON accepts both "downloadUrl" and the older "downloadURL" key.
func (f *File) UnmarshalJSON(data []byte) error {
	type plain File
	var aux struct {
		plain
		LegacyDownloadURL string `json:"downloadURL"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*f = File(aux.plain)
	if f.DownloadURL == "" {
		f.DownloadURL = aux.LegacyDownloadURL
	}
	return nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: unexpected status %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

// NewClient uses DefaultEndpoint when endpoint is empty.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProjectURL expands the endpoint for projectID without touching the network.
func (c *Client) ProjectURL(projectID int) (string, error) {
	if projectID <= 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidProjectID, projectID)
	}
	raw := strings.Replace(c.endpoint, "%d", strconv.Itoa(projectID), 1)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEndpoint, raw)
	}
	return u.String(), nil
}

// ProjectFiles returns the releases of projectID, oldest first.
func (c *Client) ProjectFiles(ctx context.Context, projectID int) ([]File, error) {
	target, err := c.ProjectURL(projectID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, ErrEmptyResponse
	}

	var files []File
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return files, nil
}

// Latest returns the newest release, which the service lists last.
func Latest(files []File) (File, bool) {
	if len(files) == 0 {
		return File{}, false
	}
	return files[len(files)-1], true
}
