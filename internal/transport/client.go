// Package transport is an HTTP client for the cart API. It lets a storefront
// process that keeps its own local cart reconcile against the cart service.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("cart service unavailable")

type Options struct {
	Timeout time.Duration
	// Consecutive failures that open the breaker.
	FailureThreshold uint32
	// How long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
	Logger      *zap.Logger
}

type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*domain.Cart]
	log     *zap.Logger
}

func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		log: log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*domain.Cart](gobreaker.Settings{
		Name:    "cart-transport",
		Timeout: opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		// Caller errors say nothing about the health of the service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound) || domain.IsValidation(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

type lineBody struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
}

type cartBody struct {
	OwnerID string `json:"ownerId"`
	Lines   []struct {
		LineID    string `json:"lineId"`
		ProductID string `json:"productId"`
		Size      string `json:"size"`
		Quantity  int    `json:"quantity"`
	} `json:"lines"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) FetchCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	return c.do(ctx, "fetch", http.MethodGet, c.cartPath(ownerID), nil)
}

func (c *Client) ReplaceCart(ctx context.Context, ownerID string, cart *domain.Cart) (*domain.Cart, error) {
	body := struct {
		Lines []lineBody `json:"lines"`
	}{Lines: []lineBody{}}
	if cart != nil {
		for _, l := range domain.Normalize(cart.Lines) {
			body.Lines = append(body.Lines, lineBody{ProductID: l.ProductID, Quantity: l.Quantity, Size: l.Size})
		}
	}
	return c.do(ctx, "replace", http.MethodPut, c.cartPath(ownerID), body)
}

func (c *Client) AppendLine(ctx context.Context, ownerID, productID, size string, quantity int) (*domain.Cart, error) {
	if err := domain.ValidateLine(productID, quantity); err != nil {
		return nil, err
	}
	return c.do(ctx, "append", http.MethodPost, c.cartPath(ownerID),
		lineBody{ProductID: productID, Quantity: quantity, Size: size})
}

func (c *Client) UpdateLineQuantity(ctx context.Context, ownerID string, key domain.LineKey, quantity int) (*domain.Cart, error) {
	body := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}
	return c.do(ctx, "update", http.MethodPut, c.linePath(ownerID, key), body)
}

func (c *Client) RemoveLine(ctx context.Context, ownerID string, key domain.LineKey) (*domain.Cart, error) {
	return c.do(ctx, "remove", http.MethodDelete, c.linePath(ownerID, key), nil)
}

func (c *Client) ClearCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	return c.do(ctx, "clear", http.MethodDelete, c.cartPath(ownerID), nil)
}

func (c *Client) cartPath(ownerID string) string {
	return c.baseURL + "/cart/" + url.PathEscape(ownerID)
}

func (c *Client) linePath(ownerID string, key domain.LineKey) string {
	return c.cartPath(ownerID) + "/items/" + key.ID()
}

func (c *Client) do(ctx context.Context, op, method, target string, body interface{}) (*domain.Cart, error) {
	cart, err := c.breaker.Execute(func() (*domain.Cart, error) {
		return c.roundTrip(ctx, method, target, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrUnavailable
	}
	if err != nil && !domain.IsValidation(err) {
		return nil, domain.NewTransportError(op, err)
	}
	return cart, err
}

func (c *Client) roundTrip(ctx context.Context, method, target string, body interface{}) (*domain.Cart, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return nil, &domain.ValidationError{Field: "request", Reason: eb.Error}
	case resp.StatusCode != http.StatusOK:
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, eb.Error)
	}

	var cb cartBody
	if err := json.NewDecoder(resp.Body).Decode(&cb); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	cart := domain.NewCart(cb.OwnerID)
	for _, l := range cb.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity})
	}
	return cart, nil
}
