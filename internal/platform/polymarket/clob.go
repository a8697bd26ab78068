package polymarket

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
	"time"

	"github.com/parivision/bridgebet/internal/crypto"
	"github.com/parivision/bridgebet/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API: order book reads, proxy wallet lookup, and order
// submission.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetOrderBook returns the two-sided book for one outcome token.
func (c *ClobClient) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, "/book?"+params.Encode(), nil)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/clob: get book: %w", err)
	}

	var apiBook APIBook
	if err := json.Unmarshal(body, &apiBook); err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	book := apiBook.ToDomainOrderBook()
	if book.TokenID == "" {
		book.TokenID = tokenID
	}
	return book, nil
}

// GetMidpoint returns the book midpoint for one outcome token. Used as a
// pricing fallback when the full book read fails.
func (c *ClobClient) GetMidpoint(ctx context.Context, tokenID string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, "/midpoint?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: get midpoint: %w", err)
	}

	var resp struct {
		Mid string `json:"mid"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode midpoint: %w", err)
	}
	mid, err := strconv.ParseFloat(resp.Mid, 64)
	if err != nil || mid <= 0 {
		return 0, fmt.Errorf("polymarket/clob: bad midpoint %q: %w", resp.Mid, domain.ErrQuoteUnavailable)
	}
	return mid, nil
}

// LookupProxyWallet asks the CLOB which proxy wallet is registered for a
// user address. Returns domain.ErrNotFound when the user has never traded.
func (c *ClobClient) LookupProxyWallet(ctx context.Context, address string) (string, error) {
	body, err := c.doGet(ctx, "/user/"+url.PathEscape(address), nil)
	if err != nil {
		return "", fmt.Errorf("polymarket/clob: lookup proxy for %s: %w", address, err)
	}

	var resp struct {
		ProxyWallet string `json:"proxyWallet"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("polymarket/clob: decode user: %w", err)
	}
	if resp.ProxyWallet == "" {
		return "", fmt.Errorf("polymarket/clob: no proxy registered for %s: %w", address, domain.ErrNotFound)
	}
	return resp.ProxyWallet, nil
}

// PostOrder submits a signed order. creds may be nil for public submission;
// when present the request carries L2 HMAC headers. A rejection comes back
// as *domain.OrderRejectedError carrying the exchange's reason verbatim, and
// must not be retried: the signature is single-use.
func (c *ClobClient) PostOrder(ctx context.Context, signed domain.SignedOrder, creds *domain.APICredentials) (domain.OrderResult, error) {
	o := signed.Order
	side := "BUY"
	if o.Side != 0 {
		side = "SELL"
	}

	body := map[string]any{
		"order": map[string]any{
			"salt":          o.Salt,
			"maker":         o.Maker,
			"signer":        o.Signer,
			"taker":         o.Taker,
			"tokenId":       o.TokenID,
			"makerAmount":   o.MakerAmount,
			"takerAmount":   o.TakerAmount,
			"expiration":    strconv.FormatInt(o.Expiration, 10),
			"nonce":         strconv.FormatInt(o.Nonce, 10),
			"feeRateBps":    o.FeeRateBps,
			"side":          side,
			"signatureType": o.SignatureType,
			"signature":     signed.Signature,
		},
		"owner":     signed.Owner,
		"orderType": signed.OrderType,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(jsonBody))
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if creds != nil {
		headers, err := crypto.L2Headers(*creds, signed.Owner, http.MethodPost, "/order", string(jsonBody))
		if err != nil {
			return domain.OrderResult{}, fmt.Errorf("polymarket/clob: auth headers: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w: %v", domain.ErrNoResponse, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: read response: %w", err)
	}

	var apiResult APIOrderResult
	// The rejection body may not be valid JSON; fall back to the raw text.
	if err := json.Unmarshal(respBody, &apiResult); err != nil && resp.StatusCode < 300 {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	if resp.StatusCode >= 300 || (!apiResult.Success && apiResult.reason() != "") {
		reason := apiResult.reason()
		if reason == "" {
			reason = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return domain.OrderResult{Success: false, Message: reason},
			&domain.OrderRejectedError{Reason: reason}
	}

	return domain.OrderResult{
		Success: true,
		OrderID: apiResult.OrderID,
		Status:  apiResult.Status,
	}, nil
}

// GetUserOrders returns the raw open-order list for a user address, passed
// through for the API layer. creds may be nil.
func (c *ClobClient) GetUserOrders(ctx context.Context, address string, creds *domain.APICredentials) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("maker", address)
	path := "/data/orders?" + params.Encode()

	var headers map[string]string
	if creds != nil {
		var err error
		headers, err = crypto.L2Headers(*creds, address, http.MethodGet, path, "")
		if err != nil {
			return nil, fmt.Errorf("polymarket/clob: auth headers: %w", err)
		}
	}

	body, err := c.doGet(ctx, path, headers)
	if err != nil {
		// An unknown user simply has no orders.
		if errors.Is(err, domain.ErrNotFound) {
			return json.RawMessage("[]"), nil
		}
		return nil, fmt.Errorf("polymarket/clob: get user orders: %w", err)
	}
	return json.RawMessage(body), nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends a GET request with optional extra headers.
func (c *ClobClient) doGet(ctx context.Context, path string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
