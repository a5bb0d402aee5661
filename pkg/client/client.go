package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

// DefaultBaseURL points at a local procmgr daemon with the default base path.
const DefaultBaseURL = "http://127.0.0.1:53211/api"

// Client provides HTTP client functionality to communicate with the procmgr daemon
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger // Optional logger for client operations
	TLS      *TLSClientConfig
	Insecure bool // Skip TLS verification
}

// TLSClientConfig holds TLS configuration for a daemon behind a TLS proxy.
type TLSClientConfig struct {
	CACert     string // CA certificate file path
	ClientCert string // Client certificate file
	ClientKey  string // Client private key file
	ServerName string // Server name for verification
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 10 * time.Second,
	}
}

// New creates a new procmgr API client
func New(config Config) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if config.TLS != nil || config.Insecure {
		tlsConfig, err := setupClientTLS(config)
		if err != nil {
			return nil, fmt.Errorf("tls setup: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
	}

	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}, nil
}

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.Version(ctx)
	if err != nil {
		c.logger.Debug("Daemon unreachable", "error", err)
		return false
	}
	return true
}

func (c *Client) List(ctx context.Context) ([]ProcessStatus, error) {
	var out []ProcessStatus
	err := c.do(ctx, http.MethodGet, "/processes", nil, &out)
	return out, err
}

func (c *Client) Get(ctx context.Context, id string) (ProcessStatus, error) {
	var out ProcessStatus
	err := c.do(ctx, http.MethodGet, processPath(id), nil, &out)
	return out, err
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (ProcessConfig, error) {
	c.logger.Debug("Creating process", "name", req.Name, "bin", req.BinPath)
	var out ProcessConfig
	err := c.do(ctx, http.MethodPost, "/processes", req, &out)
	return out, err
}

func (c *Client) Update(ctx context.Context, id string, req UpdateRequest) (ProcessConfig, error) {
	var out ProcessConfig
	err := c.do(ctx, http.MethodPut, processPath(id), req, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, processPath(id), nil, nil)
}

func (c *Client) Start(ctx context.Context, id string) (ProcessStatus, error) {
	var out ProcessStatus
	err := c.do(ctx, http.MethodPost, processPath(id)+"/start", nil, &out)
	return out, err
}

func (c *Client) Stop(ctx context.Context, id string) (ProcessStatus, error) {
	var out ProcessStatus
	err := c.do(ctx, http.MethodPost, processPath(id)+"/stop", nil, &out)
	return out, err
}

// Logs fetches the last lines of the process log; a negative lines uses the
// server default and zero fetches only the line count.
func (c *Client) Logs(ctx context.Context, id string, lines int) (LogResult, error) {
	p := processPath(id) + "/logs"
	if lines >= 0 {
		p += "?lines=" + strconv.Itoa(lines)
	}
	var out LogResult
	err := c.do(ctx, http.MethodGet, p, nil, &out)
	return out, err
}

func (c *Client) Usage(ctx context.Context, id string) (Usage, error) {
	var out Usage
	err := c.do(ctx, http.MethodGet, processPath(id)+"/usage", nil, &out)
	return out, err
}

// History fetches recent lifecycle events, newest first.
func (c *Client) History(ctx context.Context, id string, limit int) ([]HistoryEvent, error) {
	p := processPath(id) + "/history"
	if limit > 0 {
		p += "?limit=" + strconv.Itoa(limit)
	}
	var out []HistoryEvent
	err := c.do(ctx, http.MethodGet, p, nil, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context) (Summary, error) {
	var out Summary
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

func (c *Client) Version(ctx context.Context) (Version, error) {
	var out Version
	err := c.do(ctx, http.MethodGet, "/version", nil, &out)
	return out, err
}

func processPath(id string) string {
	return "/processes/" + url.PathEscape(id)
}

// setupClientTLS configures TLS settings for HTTP client
func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if config.Insecure {
		tlsConfig.InsecureSkipVerify = true // #nosec G402
		return tlsConfig, nil
	}

	if config.TLS.ServerName != "" {
		tlsConfig.ServerName = config.TLS.ServerName
	}
	if config.TLS.CACert != "" {
		if err := loadCACert(tlsConfig, config.TLS.CACert); err != nil {
			return nil, fmt.Errorf("failed to load CA certificate: %w", err)
		}
	}
	if config.TLS.ClientCert != "" && config.TLS.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(config.TLS.ClientCert, config.TLS.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// loadCACert loads CA certificate from file and adds it to TLS config
func loadCACert(tlsConfig *tls.Config, caCertPath string) error {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return fmt.Errorf("failed to read CA certificate file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return fmt.Errorf("failed to parse CA certificate")
	}

	tlsConfig.RootCAs = caCertPool
	return nil
}

// do performs an HTTP request, encoding in as JSON when non-nil and decoding
// a successful response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("HTTP request failed", "error", err, "url", u)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil {
		c.logger.Debug("Failed to decode error response", "status", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode}
	}

	c.logger.Debug("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return &APIError{StatusCode: resp.StatusCode, Kind: errorResp.Kind, Message: errorResp.Error}
}
