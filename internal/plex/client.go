// Package plex implements the catalog interfaces against plex.tv and a Plex
// Media Server, using the servers' JSON API.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"

	"github.com/roach88/plexsched/internal/catalog"
)

const (
	// DefaultAccountURL is the plex.tv endpoint used for sign-in and server
	// discovery.
	DefaultAccountURL = "https://plex.tv"

	// DefaultProduct is sent as X-Plex-Product.
	DefaultProduct = "plex-schedule"

	// DefaultRequestsPerSecond paces calls to the server.
	DefaultRequestsPerSecond = 5.0

	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 30 * time.Second

	libraryIdentifier = "com.plexapp.plugins.library"
)

// Config holds Plex client configuration.
type Config struct {
	// Token authenticates requests. Obtained once with SignIn.
	Token string

	// Server is the name of the server resource to connect to. Ignored
	// when URL is set.
	Server string

	// URL, when set, is used as the server address instead of discovery.
	URL string

	// AccountURL overrides DefaultAccountURL (tests).
	AccountURL string

	// ClientIdentifier is sent as X-Plex-Client-Identifier and should be
	// stable per installation.
	ClientIdentifier string

	Product string
	Version string

	// RequestsPerSecond and Burst configure request pacing.
	RequestsPerSecond float64
	Burst             int

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Client talks to plex.tv and opens sessions on a Plex Media Server.
// Implements catalog.Client.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a client, filling unset Config fields with defaults.
func NewClient(config Config) *Client {
	if config.AccountURL == "" {
		config.AccountURL = DefaultAccountURL
	}
	if config.Product == "" {
		config.Product = DefaultProduct
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:  config,
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
		logger:  logger,
	}
}

// Account is the plex.tv account returned by SignIn.
type Account struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AuthToken string `json:"authToken"`
}

// SignIn exchanges a username and password for an account token.
func (c *Client) SignIn(ctx context.Context, username, password string) (Account, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.config.AccountURL+"/users/sign_in.json", nil, "")
	if err != nil {
		return Account{}, err
	}
	req.SetBasicAuth(username, password)

	var resp struct {
		User Account `json:"user"`
	}
	if err := c.do(req, &resp); err != nil {
		return Account{}, &catalog.ConnectionError{Server: c.config.AccountURL, Err: errors.Wrap(err, "sign in")}
	}
	if resp.User.AuthToken == "" {
		return Account{}, &catalog.ConnectionError{
			Server: c.config.AccountURL,
			Err:    errors.New("sign in: no auth token in response"),
		}
	}

	c.logger.Debug("signed in", "username", resp.User.Username, "email", resp.User.Email)
	return resp.User, nil
}

// Resource is a device registered with the account.
type Resource struct {
	Name             string       `json:"name"`
	ClientIdentifier string       `json:"clientIdentifier"`
	Provides         string       `json:"provides"`
	AccessToken      string       `json:"accessToken"`
	Connections      []Connection `json:"connections"`
}

// Connection is one address a resource can be reached at.
type Connection struct {
	URI   string `json:"uri"`
	Local bool   `json:"local"`
	Relay bool   `json:"relay"`
}

// IsServer reports whether the resource is a media server.
func (r Resource) IsServer() bool {
	for _, p := range strings.Split(r.Provides, ",") {
		if strings.TrimSpace(p) == "server" {
			return true
		}
	}
	return false
}

// Resources lists the devices registered with the account.
func (c *Client) Resources(ctx context.Context) ([]Resource, error) {
	q := url.Values{"includeHttps": {"1"}, "includeRelay": {"1"}}
	req, err := c.newRequest(ctx, http.MethodGet, c.config.AccountURL+"/api/v2/resources", q, c.config.Token)
	if err != nil {
		return nil, err
	}

	var resources []Resource
	if err := c.do(req, &resources); err != nil {
		return nil, errors.Wrap(err, "list resources")
	}
	return resources, nil
}

// Connect implements catalog.Client. It uses Config.URL when set, otherwise
// it discovers Config.Server through plex.tv and tries its connections,
// local ones first and relays last.
func (c *Client) Connect(ctx context.Context) (catalog.Session, error) {
	if c.config.Token == "" {
		return nil, &catalog.ConnectionError{Server: c.serverName(), Err: errors.New("no auth token configured")}
	}

	if c.config.URL != "" {
		sess, err := c.open(ctx, strings.TrimRight(c.config.URL, "/"), c.config.Token)
		if err != nil {
			return nil, &catalog.ConnectionError{Server: c.serverName(), Err: err}
		}
		return sess, nil
	}

	resource, err := c.findServer(ctx)
	if err != nil {
		return nil, &catalog.ConnectionError{Server: c.serverName(), Err: err}
	}

	token := resource.AccessToken
	if token == "" {
		token = c.config.Token
	}

	var errs []error
	for _, conn := range orderConnections(resource.Connections) {
		sess, err := c.open(ctx, strings.TrimRight(conn.URI, "/"), token)
		if err == nil {
			return sess, nil
		}
		c.logger.Debug("connection failed", "uri", conn.URI, "error", err)
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}

	if len(errs) == 0 {
		errs = append(errs, errors.Newf("server %q has no connections", resource.Name))
	}
	return nil, &catalog.ConnectionError{Server: c.serverName(), Err: errors.Join(errs...)}
}

func (c *Client) serverName() string {
	if c.config.URL != "" {
		return c.config.URL
	}
	return c.config.Server
}

func (c *Client) findServer(ctx context.Context) (Resource, error) {
	resources, err := c.Resources(ctx)
	if err != nil {
		return Resource{}, err
	}

	var names []string
	for _, r := range resources {
		if !r.IsServer() {
			continue
		}
		if c.config.Server == "" || r.Name == c.config.Server {
			return r, nil
		}
		names = append(names, r.Name)
	}
	return Resource{}, errors.Newf("server %q not found (have %s)", c.config.Server, strings.Join(names, ", "))
}

// orderConnections puts local connections first and relays last, keeping
// the account's order otherwise.
func orderConnections(conns []Connection) []Connection {
	rank := func(c Connection) int {
		switch {
		case c.Local:
			return 0
		case c.Relay:
			return 2
		default:
			return 1
		}
	}

	out := make([]Connection, 0, len(conns))
	for r := 0; r <= 2; r++ {
		for _, c := range conns {
			if rank(c) == r {
				out = append(out, c)
			}
		}
	}
	return out
}

// open checks the server identity and returns a session bound to baseURL.
func (c *Client) open(ctx context.Context, baseURL, token string) (*Session, error) {
	s := &Session{client: c, baseURL: baseURL, token: token}

	var resp struct {
		MediaContainer struct {
			MachineIdentifier string `json:"machineIdentifier"`
			Version           string `json:"version"`
		} `json:"MediaContainer"`
	}
	if err := s.get(ctx, "/identity", nil, &resp); err != nil {
		return nil, errors.Wrapf(err, "identity of %s", baseURL)
	}

	s.machineID = resp.MediaContainer.MachineIdentifier
	c.logger.Info("connected to plex server",
		"url", baseURL,
		"machine_id", s.machineID,
		"version", resp.MediaContainer.Version,
	)
	return s, nil
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Code, http.StatusText(e.Code), e.Body)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

// IsStatus returns true if err is or wraps a *StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, query url.Values, token string) (*http.Request, error) {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Client-Identifier", c.config.ClientIdentifier)
	req.Header.Set("X-Plex-Product", c.config.Product)
	req.Header.Set("X-Plex-Version", c.config.Version)
	if token != "" {
		req.Header.Set("X-Plex-Token", token)
	}
	return req, nil
}

// do sends req after waiting for the rate limiter and decodes a JSON body
// into out (if non-nil).
func (c *Client) do(req *http.Request, out any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return errors.Wrap(err, "rate limit")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", req.Method, req.URL.Path)
	}
	defer resp.Body.Close()

	c.logger.Debug("plex request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method: req.Method,
			Path:   req.URL.Path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(truncate(string(body), 200)),
		}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "decode %s", req.URL.Path)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
