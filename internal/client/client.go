package client

import (
	"bytes"
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

	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/contract"
	"github.com/example/catering-cart/internal/domain/cart"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoBaseURL    = errors.New("backend base URL is required")
)

// StatusError is returned for any non-2xx response other than 401
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// TokenProvider supplies the bearer token for each request
type TokenProvider interface {
	Token() string
}

// Client talks to the draft-order backend
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenProvider
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a per-request timeout. Zero keeps the HTTP client default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d, Transport: c.httpClient.Transport}
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend at baseURL
func New(baseURL string, tokens TokenProvider, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrNoBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		tokens:     tokens,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchDraft returns the customer's draft order, or nil if none exists
func (c *Client) FetchDraft(ctx context.Context, customer string) (*contract.DraftOrder, error) {
	var out contract.DraftOrder
	err := c.do(ctx, http.MethodGet, "/draft-orders", customerQuery(customer), nil, &out)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch draft order: %w", err)
	}
	return &out, nil
}

// UpsertDraft replaces the draft's lines with items and returns its id
func (c *Client) UpsertDraft(ctx context.Context, customer string, items []cart.LineItem) (int64, error) {
	req := contract.UpsertDraftRequest{Lines: make([]contract.LineInput, 0, len(items))}
	for _, item := range items {
		req.Lines = append(req.Lines, contract.LineInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice,
		})
	}

	var out contract.UpsertDraftResponse
	if err := c.do(ctx, http.MethodPut, "/draft-orders", customerQuery(customer), req, &out); err != nil {
		return 0, fmt.Errorf("failed to upsert draft order: %w", err)
	}
	if out.OrderID <= 0 {
		return 0, fmt.Errorf("failed to upsert draft order: backend returned order id %d", out.OrderID)
	}
	return out.OrderID, nil
}

// DeleteDraft removes the draft. A draft that is already gone is not an error.
func (c *Client) DeleteDraft(ctx context.Context, orderID int64, customer string) error {
	path := "/draft-orders/" + strconv.FormatInt(orderID, 10)
	err := c.do(ctx, http.MethodDelete, path, customerQuery(customer), nil, nil)
	if IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete draft order %d: %w", orderID, err)
	}
	return nil
}

// CheckAccess asks which customers the session may act for
func (c *Client) CheckAccess(ctx context.Context, customer string) (*contract.Access, error) {
	var out contract.Access
	if err := c.do(ctx, http.MethodGet, "/access", customerQuery(customer), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to check access: %w", err)
	}
	return &out, nil
}

// Login exchanges credentials for an access token
func (c *Client) Login(ctx context.Context, email, password string) (*contract.LoginResponse, error) {
	var out contract.LoginResponse
	req := contract.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, req, &out); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return &out, nil
}

func customerQuery(customer string) url.Values {
	if customer == "" {
		return nil
	}
	return url.Values{"customer": []string{customer}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		var er contract.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er)
		return &StatusError{Code: resp.StatusCode, Message: er.Error}
	case out == nil || resp.StatusCode == http.StatusNoContent:
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
