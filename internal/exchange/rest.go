package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	requestTimeout = 30 * time.Second
	fetchRetries   = 3
	retryBaseDelay = 500 * time.Millisecond
)

// Credentials authenticates one user against one venue.
type Credentials struct {
	APIKey    string
	APISecret string
}

// restConnector is a generic signed REST client shaped by a VenueProfile.
// Read-only fetches retry with backoff; SubmitOrder and CancelOrder go out
// exactly once — duplicate-submission defense is the client order id, not a
// retry loop.
type restConnector struct {
	profile VenueProfile
	creds   Credentials
	client  *http.Client
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// NewRESTConnector builds a connector for the venue described by profile.
func NewRESTConnector(profile VenueProfile, creds Credentials, logger *logrus.Logger) Connector {
	return &restConnector{
		profile: profile,
		creds:   creds,
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(profile.RateLimit), 5),
		logger:  logger,
	}
}

func (c *restConnector) Venue() string {
	return c.profile.Slug
}

type marketPayload struct {
	Symbol      string  `json:"symbol"`
	Base        string  `json:"base"`
	Quote       string  `json:"quote"`
	Active      bool    `json:"active"`
	MakerFee    float64 `json:"maker_fee"`
	TakerFee    float64 `json:"taker_fee"`
	MinAmount   float64 `json:"min_amount"`
	MaxAmount   float64 `json:"max_amount"`
	MinPrice    float64 `json:"min_price"`
	MaxPrice    float64 `json:"max_price"`
	MinNotional float64 `json:"min_notional"`
	AmountStep  float64 `json:"amount_step"`
}

func (c *restConnector) FetchMarkets(ctx context.Context) (map[string]Market, error) {
	var payload []marketPayload
	if err := c.getJSON(ctx, "/api/v1/markets", nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}

	markets := make(map[string]Market, len(payload))
	for _, m := range payload {
		canonical := m.Base + "/" + m.Quote
		markets[canonical] = Market{
			Symbol:      canonical,
			Base:        m.Base,
			Quote:       m.Quote,
			Active:      m.Active,
			MakerFee:    m.MakerFee,
			TakerFee:    m.TakerFee,
			MinAmount:   m.MinAmount,
			MaxAmount:   m.MaxAmount,
			MinPrice:    m.MinPrice,
			MaxPrice:    m.MaxPrice,
			MinNotional: m.MinNotional,
			AmountStep:  m.AmountStep,
		}
	}
	return markets, nil
}

func (c *restConnector) FetchTicker(ctx context.Context, symbol string) (*Ticker, error) {
	wire, err := FormatSymbol(c.profile.Slug, symbol)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Symbol string  `json:"symbol"`
		Last   float64 `json:"last"`
		Bid    float64 `json:"bid"`
		Ask    float64 `json:"ask"`
		Time   int64   `json:"time"`
	}
	if err := c.getJSON(ctx, "/api/v1/ticker", url.Values{"symbol": {wire}}, &payload); err != nil {
		return nil, fmt.Errorf("fetch ticker %s: %w", symbol, err)
	}

	return &Ticker{
		Symbol:    symbol,
		Last:      payload.Last,
		Bid:       payload.Bid,
		Ask:       payload.Ask,
		Timestamp: time.UnixMilli(payload.Time),
	}, nil
}

func (c *restConnector) FetchOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error) {
	wire, err := FormatSymbol(c.profile.Slug, symbol)
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		depth = 50
	}

	var payload struct {
		Bids [][2]float64 `json:"bids"`
		Asks [][2]float64 `json:"asks"`
	}
	q := url.Values{"symbol": {wire}, "limit": {strconv.Itoa(depth)}}
	if err := c.getJSON(ctx, "/api/v1/depth", q, &payload); err != nil {
		return nil, fmt.Errorf("fetch order book %s: %w", symbol, err)
	}

	book := &OrderBook{Symbol: symbol}
	for _, lvl := range payload.Bids {
		book.Bids = append(book.Bids, BookLevel{Price: lvl[0], Quantity: lvl[1]})
	}
	for _, lvl := range payload.Asks {
		book.Asks = append(book.Asks, BookLevel{Price: lvl[0], Quantity: lvl[1]})
	}
	return book, nil
}

func (c *restConnector) FetchBalance(ctx context.Context) (map[string]AssetBalance, error) {
	var payload []struct {
		Currency string  `json:"currency"`
		Free     float64 `json:"free"`
		Locked   float64 `json:"locked"`
	}
	if err := c.getJSON(ctx, "/api/v1/account/balances", nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}

	balances := make(map[string]AssetBalance, len(payload))
	for _, b := range payload {
		balances[b.Currency] = AssetBalance{Free: b.Free, Locked: b.Locked}
	}
	return balances, nil
}

func (c *restConnector) FetchTradingFees(ctx context.Context) (*TradingFees, error) {
	var payload struct {
		Maker float64 `json:"maker"`
		Taker float64 `json:"taker"`
	}
	if err := c.getJSON(ctx, "/api/v1/account/fees", nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch trading fees: %w", err)
	}
	return &TradingFees{Maker: payload.Maker, Taker: payload.Taker}, nil
}

func (c *restConnector) SubmitOrder(ctx context.Context, symbol string, orderType, side string, quantity float64, price *float64, params map[string]any) (*OrderAck, error) {
	wire, err := FormatSymbol(c.profile.Slug, symbol)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"symbol":   wire,
		"type":     orderType,
		"side":     side,
		"quantity": quantity,
	}
	if price != nil {
		body["price"] = *price
	}
	for k, v := range params {
		body[k] = v
	}

	var payload struct {
		OrderID          string  `json:"order_id"`
		ClientOrderID    string  `json:"client_order_id"`
		Status           string  `json:"status"`
		Price            float64 `json:"price"`
		ExecutedQuantity float64 `json:"executed_quantity"`
		Cost             float64 `json:"cost"`
		FeeAmount        float64 `json:"fee_amount"`
		FeeCurrency      string  `json:"fee_currency"`
		TransactTime     int64   `json:"transact_time"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/orders", nil, body, &payload); err != nil {
		return nil, err
	}

	return &OrderAck{
		VenueOrderID:     payload.OrderID,
		ClientOrderID:    payload.ClientOrderID,
		Status:           payload.Status,
		Price:            payload.Price,
		ExecutedQuantity: payload.ExecutedQuantity,
		Cost:             payload.Cost,
		FeeAmount:        payload.FeeAmount,
		FeeCurrency:      payload.FeeCurrency,
		TransactTime:     time.UnixMilli(payload.TransactTime),
	}, nil
}

func (c *restConnector) CancelOrder(ctx context.Context, venueOrderID, symbol string) error {
	wire, err := FormatSymbol(c.profile.Slug, symbol)
	if err != nil {
		return err
	}
	q := url.Values{"symbol": {wire}}
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/orders/"+url.PathEscape(venueOrderID), q, nil, nil)
}

// getJSON performs a read-only fetch with backoff. Venue hiccups on reads are
// common and harmless to retry.
func (c *restConnector) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	backoff := retry.WithMaxRetries(fetchRetries, retry.NewFibonacci(retryBaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.doJSON(ctx, http.MethodGet, path, query, nil, out)
		if err != nil {
			c.logger.WithError(err).WithField("venue", c.profile.Slug).Warnf("retrying GET %s", path)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (c *restConnector) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := c.profile.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	var rawBody []byte
	if body != nil {
		var err error
		rawBody, err = json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(rawBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, path, rawBody)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, venueMessage(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// sign adds the venue auth headers: HMAC-SHA256 over timestamp+method+path+body.
func (c *restConnector) sign(req *http.Request, path string, body []byte) {
	if c.creds.APIKey == "" {
		return
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(c.creds.APISecret))
	mac.Write([]byte(ts + req.Method + path))
	mac.Write(body)

	req.Header.Set("X-API-KEY", c.creds.APIKey)
	req.Header.Set("X-TIMESTAMP", ts)
	req.Header.Set("X-SIGNATURE", hex.EncodeToString(mac.Sum(nil)))
}

// venueMessage pulls the human-readable error out of a venue error body so it
// can be embedded in the execution error envelope.
func venueMessage(data []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if len(data) > 200 {
		data = data[:200]
	}
	return string(data)
}
