package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aminsb/tradedesk/internal/alert"
	"github.com/aminsb/tradedesk/internal/exchange"
	"github.com/aminsb/tradedesk/internal/model"
	"github.com/aminsb/tradedesk/internal/repository"
	"github.com/sirupsen/logrus"
	"io"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type submission struct {
	symbol    string
	orderType string
	side      string
	quantity  float64
	price     *float64
	params    map[string]any
}

// fakeConnector scripts venue behavior: acks and errors are consumed in
// submission order.
type fakeConnector struct {
	venue      string
	markets    map[string]exchange.Market
	marketsErr error
	ticker     *exchange.Ticker
	tickerErr  error
	book       *exchange.OrderBook
	bookErr    error
	balances   map[string]exchange.AssetBalance
	fees       *exchange.TradingFees
	feesErr    error

	acks       []*exchange.OrderAck
	submitErrs []error
	submits    []submission

	cancelErr   error
	cancelErrOn int // fail only the Nth cancel; 0 fails every cancel
	canceled    []string
}

func (f *fakeConnector) Venue() string {
	if f.venue == "" {
		return "binance"
	}
	return f.venue
}

func (f *fakeConnector) FetchMarkets(ctx context.Context) (map[string]exchange.Market, error) {
	if f.marketsErr != nil {
		return nil, f.marketsErr
	}
	return f.markets, nil
}

func (f *fakeConnector) FetchTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	if f.tickerErr != nil {
		return nil, f.tickerErr
	}
	if f.ticker != nil {
		return f.ticker, nil
	}
	return &exchange.Ticker{Symbol: symbol, Last: 100}, nil
}

func (f *fakeConnector) FetchOrderBook(ctx context.Context, symbol string, depth int) (*exchange.OrderBook, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	if f.book != nil {
		return f.book, nil
	}
	return &exchange.OrderBook{Symbol: symbol}, nil
}

func (f *fakeConnector) FetchBalance(ctx context.Context) (map[string]exchange.AssetBalance, error) {
	if f.balances != nil {
		return f.balances, nil
	}
	return map[string]exchange.AssetBalance{}, nil
}

func (f *fakeConnector) FetchTradingFees(ctx context.Context) (*exchange.TradingFees, error) {
	if f.feesErr != nil {
		return nil, f.feesErr
	}
	if f.fees == nil {
		return nil, errors.New("fees endpoint not supported")
	}
	return f.fees, nil
}

func (f *fakeConnector) SubmitOrder(ctx context.Context, symbol string, orderType, side string, quantity float64, price *float64, params map[string]any) (*exchange.OrderAck, error) {
	i := len(f.submits)
	f.submits = append(f.submits, submission{
		symbol: symbol, orderType: orderType, side: side,
		quantity: quantity, price: price, params: params,
	})
	if i < len(f.submitErrs) && f.submitErrs[i] != nil {
		return nil, f.submitErrs[i]
	}
	if i < len(f.acks) {
		return f.acks[i], nil
	}
	return &exchange.OrderAck{
		VenueOrderID: fmt.Sprintf("venue-%d", i+1),
		Status:       "open",
	}, nil
}

func (f *fakeConnector) CancelOrder(ctx context.Context, venueOrderID, symbol string) error {
	f.canceled = append(f.canceled, venueOrderID)
	if f.cancelErr != nil && (f.cancelErrOn == 0 || f.cancelErrOn == len(f.canceled)) {
		return f.cancelErr
	}
	return nil
}

type fakeRegistry struct {
	conn exchange.Connector
	err  error
}

func (f *fakeRegistry) Resolve(ctx context.Context, venue string, userID uint) (exchange.Connector, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

// fakeOrderRepo is an in-memory order store with rollback-capable
// transactions.
type fakeOrderRepo struct {
	nextID  uint
	orders  map[uint]*model.Order
	creates int

	failCreateOn int // fail the Nth create across the repo's lifetime
	updateErr    error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{nextID: 1, orders: make(map[uint]*model.Order)}
}

func (r *fakeOrderRepo) Create(ctx context.Context, order *model.Order) error {
	r.creates++
	if r.failCreateOn > 0 && r.creates == r.failCreateOn {
		return errors.New("simulated insert failure")
	}
	order.ID = r.nextID
	r.nextID++
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	stored := *order
	r.orders[order.ID] = &stored
	return nil
}

func (r *fakeOrderRepo) Update(ctx context.Context, order *model.Order) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.orders[order.ID]; !ok {
		return model.ErrOrderNotFound
	}
	stored := *order
	r.orders[order.ID] = &stored
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, ok := r.orders[orderID]
	if !ok || order.UserID != userID {
		return nil, model.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (r *fakeOrderRepo) List(ctx context.Context, userID uint, filters model.OrderFilters) ([]model.Order, error) {
	var out []model.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (r *fakeOrderRepo) ListFilledByCoin(ctx context.Context, userID, coinID uint) ([]model.Order, error) {
	var out []model.Order
	for _, o := range r.orders {
		if o.UserID == userID && o.BaseCoinID == coinID && o.Status == model.StatusFilled {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactTime.Before(out[j].TransactTime) })
	return out, nil
}

func (r *fakeOrderRepo) Transaction(ctx context.Context, fn func(repo repository.OrderRepository) error) error {
	snapshot := make(map[uint]*model.Order, len(r.orders))
	for id, o := range r.orders {
		copied := *o
		snapshot[id] = &copied
	}
	snapshotNext := r.nextID

	if err := fn(r); err != nil {
		r.orders = snapshot
		r.nextID = snapshotNext
		return err
	}
	return nil
}

type fakeCoinRepo struct {
	coins []*model.Coin
}

func (r *fakeCoinRepo) GetByID(ctx context.Context, id uint) (*model.Coin, error) {
	for _, c := range r.coins {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("coin %d not found", id)
}

func (r *fakeCoinRepo) GetBySymbol(ctx context.Context, symbol string) (*model.Coin, error) {
	for _, c := range r.coins {
		if c.Symbol == symbol {
			return c, nil
		}
	}
	return nil, fmt.Errorf("coin %s not found", symbol)
}

func (r *fakeCoinRepo) GetBySymbols(ctx context.Context, symbols []string) (map[string]model.Coin, error) {
	out := make(map[string]model.Coin)
	for _, s := range symbols {
		if c, err := r.GetBySymbol(ctx, s); err == nil {
			out[s] = *c
		}
	}
	return out, nil
}

type fakeNotifier struct {
	events []alert.ReconciliationEvent
}

func (n *fakeNotifier) ReconciliationFailure(event alert.ReconciliationEvent) {
	n.events = append(n.events, event)
}

func (n *fakeNotifier) Close() {}
