package client

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/forumkit/searchd/internal/config"
	"github.com/forumkit/searchd/internal/domain"
	"github.com/forumkit/searchd/internal/search"
)

// Client talks to a running searchd over its HTTP API. Basic auth and the
// TLS verification bypass are driven by the [client] config section; the
// bypass is for development endpoints only.
type Client struct {
	endpoint string
	username string
	password string
	http     *http.Client
}

func New(cfg config.ClientConfig) *Client {
	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (c *Client) get(path string, query url.Values, out any) error {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(path string, out any) error {
	req, err := http.NewRequest(http.MethodPost, c.endpoint+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("service not reachable at %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

type SearchResponse struct {
	Mode    search.Mode     `json:"mode"`
	Results []search.Result `json:"results"`
}

type TypedSearchResponse struct {
	Mode       search.Mode       `json:"mode"`
	Users      []domain.User     `json:"users,omitempty"`
	Posts      []domain.Post     `json:"posts,omitempty"`
	Comments   []domain.Comment  `json:"comments,omitempty"`
	Categories []domain.Category `json:"categories,omitempty"`
	Tags       []domain.Tag      `json:"tags,omitempty"`
}

type StatsResponse struct {
	Indexed    map[string]uint64 `json:"indexed"`
	Stored     map[string]int    `json:"stored"`
	Reindexing bool              `json:"reindexing"`
}

func (c *Client) GlobalSearch(keyword string) (*SearchResponse, error) {
	var out SearchResponse
	q := url.Values{"q": {keyword}}
	if err := c.get("/search", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchTyped(entityType, keyword string) (*TypedSearchResponse, error) {
	var out TypedSearchResponse
	q := url.Values{"q": {keyword}}
	if err := c.get("/search/"+url.PathEscape(entityType), q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Reindex() (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.post("/reindex", &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Client) Stats() (*StatsResponse, error) {
	var out StatsResponse
	if err := c.get("/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
