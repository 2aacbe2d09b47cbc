package couch

import (
	"bytes"
	"context"
	"couchtransfer/internal/common"
	"couchtransfer/internal/pool"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Operation names used in errors, logs and request metrics.
const (
	OpDatabaseInfo   = "database info"
	OpAllDocs        = "all docs"
	OpCreateDatabase = "create database"
	OpBulkDocs       = "bulk docs"
)

const (
	// MaxErrorBodyLen bounds how much of a failed response is kept for errors and logs.
	MaxErrorBodyLen = 1024

	truncatedSuffix = "...(truncated)"

	bulkBufferSize = 64 << 10
)

// RequestObserver is notified after every request. code is 0 when no response arrived.
type RequestObserver interface {
	ObserveRequest(op string, code int, duration time.Duration)
}

// Client talks to one database of a CouchDB-compatible server over its HTTP API.
type Client struct {
	baseURL    string
	database   string
	user       string
	password   string
	httpClient *http.Client
	buffers    *pool.BufferPool
	observer   RequestObserver
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every request, including reading the response body. Zero means no limit.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithObserver registers an observer for request outcomes.
func WithObserver(o RequestObserver) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBufferPool shares a pool of request body buffers between clients.
func WithBufferPool(p *pool.BufferPool) Option {
	return func(c *Client) {
		if p != nil {
			c.buffers = p
		}
	}
}

// NewClient creates a client for the database and credentials in cfg.
func NewClient(cfg common.ConfigProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.GetBaseURL(), "/"),
		database:   cfg.GetDatabase(),
		user:       cfg.GetUser(),
		password:   cfg.GetPassword(),
		httpClient: &http.Client{},
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.buffers == nil {
		c.buffers = pool.NewBufferPool(bulkBufferSize)
	}
	return c
}

// Database returns the database the client operates on.
func (c *Client) Database() string {
	return c.database
}

type databaseInfo struct {
	DocCount int64 `json:"doc_count"`
}

// DocumentCount returns the number of documents in the database.
func (c *Client) DocumentCount(ctx context.Context) (int64, error) {
	var info databaseInfo
	if err := c.doJSON(ctx, OpDatabaseInfo, http.MethodGet, c.databaseURL(), nil, &info); err != nil {
		return 0, err
	}
	return info.DocCount, nil
}

// ListDocuments returns up to limit documents with their bodies, skipping the first skip.
func (c *Client) ListDocuments(ctx context.Context, limit, skip int) (*common.Page, error) {
	query := url.Values{}
	query.Set("include_docs", "true")
	query.Set("limit", strconv.Itoa(limit))
	query.Set("skip", strconv.Itoa(skip))

	var page common.Page
	endpoint := c.databaseURL() + "/_all_docs?" + query.Encode()
	if err := c.doJSON(ctx, OpAllDocs, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateCollection creates the database. A database that already exists counts as created.
func (c *Client) CreateCollection(ctx context.Context) error {
	err := c.doJSON(ctx, OpCreateDatabase, http.MethodPut, c.databaseURL(), nil, nil)

	var remoteErr *common.RemoteError
	if errors.As(err, &remoteErr) && remoteErr.StatusCode == http.StatusPreconditionFailed {
		c.logger.Debug("database already exists", "database", c.database)
		return nil
	}
	return err
}

type bulkDocsRequest struct {
	NewEdits bool              `json:"new_edits"`
	Docs     []common.Document `json:"docs"`
}

// BulkWrite stores docs in one _bulk_docs request. With newEdits false the documents keep
// their revisions. Any 2xx response counts as success.
func (c *Client) BulkWrite(ctx context.Context, docs []common.Document, newEdits bool) error {
	if docs == nil {
		docs = []common.Document{}
	}

	buf := c.buffers.Get()
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(bulkDocsRequest{NewEdits: newEdits, Docs: docs}); err != nil {
		c.buffers.Put(buf)
		return &common.RemoteError{Database: c.database, Op: OpBulkDocs, Err: fmt.Errorf("encode request: %w", err)}
	}

	body := &pooledBody{Reader: bytes.NewReader(buf.Bytes()), release: func() { c.buffers.Put(buf) }}
	return c.do(ctx, OpBulkDocs, http.MethodPost, c.databaseURL()+"/_bulk_docs", body, int64(buf.Len()), nil)
}

func (c *Client) databaseURL() string {
	return c.baseURL + "/" + url.PathEscape(c.database)
}

func (c *Client) doJSON(ctx context.Context, op, method, endpoint string, body io.ReadCloser, out any) error {
	return c.do(ctx, op, method, endpoint, body, 0, out)
}

// do sends one request and decodes a successful JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body io.ReadCloser, length int64, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		if body != nil {
			body.Close()
		}
		return &common.RemoteError{Database: c.database, Op: op, Err: err}
	}
	if body != nil {
		req.ContentLength = length
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.user, c.password)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		c.logger.Debug("request failed", "op", op, "method", method, "error", err)
		return &common.RemoteError{Database: c.database, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe(op, resp.StatusCode, start)
		text := readLimited(resp.Body)
		c.logger.Debug("request rejected", "op", op, "method", method, "status", resp.StatusCode, "body", text)
		return &common.RemoteError{Database: c.database, Op: op, StatusCode: resp.StatusCode, Body: text}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.observe(op, resp.StatusCode, start)
			return &common.RemoteError{
				Database:   c.database,
				Op:         op,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("decode response: %w", err),
			}
		}
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	c.observe(op, resp.StatusCode, start)
	c.logger.Debug("request completed", "op", op, "method", method, "status", resp.StatusCode, "duration", time.Since(start))
	return nil
}

func (c *Client) observe(op string, code int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveRequest(op, code, time.Since(start))
	}
}

// readLimited reads at most MaxErrorBodyLen bytes of r.
func readLimited(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, MaxErrorBodyLen+1))
	return Truncate(strings.TrimSpace(string(data)), MaxErrorBodyLen)
}

// Truncate shortens s to at most n bytes, marking the cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + truncatedSuffix
}

// pooledBody returns its buffer to the pool once the transport closes it.
type pooledBody struct {
	*bytes.Reader
	once    sync.Once
	release func()
}

func (b *pooledBody) Close() error {
	b.once.Do(b.release)
	return nil
}
