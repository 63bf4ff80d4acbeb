package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aminsb/tradedesk/internal/exchange"
	"github.com/aminsb/tradedesk/internal/model"
)

func newTestOrderService(conn *fakeConnector, repo *fakeOrderRepo, notifier *fakeNotifier) *OrderService {
	coins := &fakeCoinRepo{coins: []*model.Coin{
		{ID: 1, Symbol: "BTC", CurrentPrice: 43000},
		{ID: 2, Symbol: "USDT", CurrentPrice: 1},
	}}
	logger := testLogger()
	return NewOrderService(repo, coins, &fakeRegistry{conn: conn},
		NewValidator(logger), NewEstimator(logger), notifier, logger)
}

func limitBuyRequest() *model.OrderRequest {
	return &model.OrderRequest{
		Exchange: "binance",
		Symbol:   "BTC/USDT",
		Side:     model.SideBuy,
		Type:     model.TypeLimit,
		Quantity: 0.5,
		Price:    floatPtr(40000),
	}
}

func TestCreateOrderPersistsVenueAck(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.acks = []*exchange.OrderAck{{VenueOrderID: "v-100", Status: "open"}}
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	svc := newTestOrderService(conn, repo, notifier)

	order, err := svc.CreateOrder(context.Background(), limitBuyRequest(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.ID == 0 {
		t.Error("expected assigned order id")
	}
	if order.VenueOrderID != "v-100" {
		t.Errorf("expected venue order id v-100, got %s", order.VenueOrderID)
	}
	if order.Status != model.StatusNew {
		t.Errorf("venue 'open' should map to NEW, got %s", order.Status)
	}
	if !strings.HasPrefix(order.ClientOrderID, "td-") {
		t.Errorf("expected client order id with td- prefix, got %s", order.ClientOrderID)
	}
	// Fee endpoint and market metadata carry no rates in this fixture, so the
	// binance static maker default applies: 20000 * 0.001.
	if order.FeeAmount != 20 {
		t.Errorf("expected fee 20, got %v", order.FeeAmount)
	}
	if order.FeeCurrency != "USDT" {
		t.Errorf("expected fee currency USDT, got %s", order.FeeCurrency)
	}
	if len(repo.orders) != 1 {
		t.Errorf("expected exactly one persisted order, got %d", len(repo.orders))
	}
	if len(notifier.events) != 0 {
		t.Errorf("no reconciliation alert expected, got %d", len(notifier.events))
	}
}

func TestCreateOrderClampsExecutedQuantity(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.acks = []*exchange.OrderAck{{VenueOrderID: "v-1", Status: "closed", ExecutedQuantity: 2, Cost: 20000}}
	svc := newTestOrderService(conn, newFakeOrderRepo(), &fakeNotifier{})

	order, err := svc.CreateOrder(context.Background(), limitBuyRequest(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ExecutedQuantity > order.Quantity {
		t.Errorf("executed quantity %v exceeds quantity %v", order.ExecutedQuantity, order.Quantity)
	}
	if order.Status != model.StatusFilled {
		t.Errorf("venue 'closed' should map to FILLED, got %s", order.Status)
	}
}

func TestCreateOrderVenueRejectionRollsBack(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.submitErrs = []error{errors.New("insufficient margin")}
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	svc := newTestOrderService(conn, repo, notifier)

	_, err := svc.CreateOrder(context.Background(), limitBuyRequest(), 1)
	var ee *model.ExecutionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected execution error, got %v", err)
	}
	if !strings.Contains(err.Error(), "failed to submit order") {
		t.Errorf("expected stable envelope, got %q", err.Error())
	}
	if len(repo.orders) != 0 {
		t.Errorf("no order should persist after venue rejection, got %d", len(repo.orders))
	}
	if len(notifier.events) != 0 {
		t.Error("venue rejection without local side effects must not escalate")
	}
}

func TestCreateOrderPersistFailureEscalates(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.acks = []*exchange.OrderAck{{VenueOrderID: "v-55", Status: "open"}}
	repo := newFakeOrderRepo()
	repo.failCreateOn = 1
	notifier := &fakeNotifier{}
	svc := newTestOrderService(conn, repo, notifier)

	_, err := svc.CreateOrder(context.Background(), limitBuyRequest(), 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if model.IsValidation(err) {
		t.Errorf("caller must see a generic failure, got validation error %v", err)
	}
	if len(repo.orders) != 0 {
		t.Errorf("transaction should roll back, got %d rows", len(repo.orders))
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected one reconciliation alert, got %d", len(notifier.events))
	}
	event := notifier.events[0]
	if len(event.VenueOrderIDs) != 1 || event.VenueOrderIDs[0] != "v-55" {
		t.Errorf("alert must carry the venue order id, got %v", event.VenueOrderIDs)
	}
	if event.Symbol == "" || event.Quantity == 0 {
		t.Errorf("alert must identify the order: %+v", event)
	}
}

func TestCreateOrderRejectsMissingConditionalFields(t *testing.T) {
	svc := newTestOrderService(marketConn(btcMarket()), newFakeOrderRepo(), &fakeNotifier{})

	cases := []*model.OrderRequest{
		{Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideBuy, Type: model.TypeLimit, Quantity: 0.5},
		{Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideBuy, Type: model.TypeStopLoss, Quantity: 0.5},
		{Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideBuy, Type: model.TypeStopLimit, Quantity: 0.5, Price: floatPtr(1)},
		{Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideBuy, Type: model.TypeTrailingStop, Quantity: 0.5},
		{Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideBuy, Type: model.TypeTakeProfit, Quantity: 0.5},
		{Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideSell, Type: model.TypeOCO, Quantity: 0.5, TakeProfitPrice: floatPtr(46000)},
	}
	for _, req := range cases {
		if _, err := svc.CreateOrder(context.Background(), req, 1); !model.IsValidation(err) {
			t.Errorf("%s without required fields should fail validation, got %v", req.Type, err)
		}
	}
}

func TestPlaceOCOLinksLegsSymmetrically(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.acks = []*exchange.OrderAck{
		{VenueOrderID: "v-tp", Status: "open"},
		{VenueOrderID: "v-sl", Status: "open"},
	}
	repo := newFakeOrderRepo()
	svc := newTestOrderService(conn, repo, &fakeNotifier{})

	req := &model.OrderRequest{
		Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideSell,
		Type: model.TypeOCO, Quantity: 0.5,
		TakeProfitPrice: floatPtr(46000), StopLossPrice: floatPtr(39000),
	}
	primary, err := svc.PlaceManualOrder(context.Background(), req, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.orders) != 2 {
		t.Fatalf("expected two persisted legs, got %d", len(repo.orders))
	}
	if primary.OCOLinkedOrderID == nil {
		t.Fatal("primary leg missing linkage")
	}
	sibling := repo.orders[*primary.OCOLinkedOrderID]
	if sibling == nil {
		t.Fatal("linked sibling not persisted")
	}
	if sibling.OCOLinkedOrderID == nil || *sibling.OCOLinkedOrderID != primary.ID {
		t.Error("OCO linkage is not symmetric")
	}
	if primary.Type != model.TypeOCO || sibling.Type != model.TypeOCO {
		t.Errorf("both legs should persist as OCO, got %s and %s", primary.Type, sibling.Type)
	}

	// Saga order on the wire: take-profit leg (limit) before stop-loss leg.
	if len(conn.submits) != 2 {
		t.Fatalf("expected two venue submissions, got %d", len(conn.submits))
	}
	if conn.submits[0].orderType != string(model.TypeLimit) || conn.submits[0].price == nil || *conn.submits[0].price != 46000 {
		t.Errorf("first submission should be the take-profit limit leg: %+v", conn.submits[0])
	}
	if conn.submits[1].orderType != string(model.TypeStopLoss) {
		t.Errorf("second submission should be the stop-loss leg: %+v", conn.submits[1])
	}
	if stop, ok := conn.submits[1].params["stop_price"].(float64); !ok || stop != 39000 {
		t.Errorf("stop-loss leg missing stop price param: %+v", conn.submits[1].params)
	}
	if !primary.IsManual || !sibling.IsManual {
		t.Error("manual placement should mark both legs manual")
	}
}

func TestPlaceOCOCompensatesOnStopLossFailure(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.acks = []*exchange.OrderAck{{VenueOrderID: "v-tp", Status: "open"}}
	conn.submitErrs = []error{nil, errors.New("stop loss rejected")}
	repo := newFakeOrderRepo()
	notifier := &fakeNotifier{}
	svc := newTestOrderService(conn, repo, notifier)

	req := &model.OrderRequest{
		Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideSell,
		Type: model.TypeOCO, Quantity: 0.5,
		TakeProfitPrice: floatPtr(46000), StopLossPrice: floatPtr(39000),
	}
	_, err := svc.CreateOrder(context.Background(), req, 1)
	if err == nil || !strings.Contains(err.Error(), "failed to submit stop-loss leg") {
		t.Fatalf("expected the original stop-loss error, got %v", err)
	}

	if len(conn.canceled) != 1 || conn.canceled[0] != "v-tp" {
		t.Errorf("take-profit leg should be canceled on the venue, canceled=%v", conn.canceled)
	}
	if len(repo.orders) != 0 {
		t.Errorf("no rows may persist after compensation, got %d", len(repo.orders))
	}
	if len(notifier.events) != 0 {
		t.Error("compensated saga must not escalate")
	}
}

func TestPlaceOCOCancelFailureStillReturnsOriginalError(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.acks = []*exchange.OrderAck{{VenueOrderID: "v-tp", Status: "open"}}
	conn.submitErrs = []error{nil, errors.New("stop loss rejected")}
	conn.cancelErr = errors.New("cancel timeout")
	svc := newTestOrderService(conn, newFakeOrderRepo(), &fakeNotifier{})

	req := &model.OrderRequest{
		Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideSell,
		Type: model.TypeOCO, Quantity: 0.5,
		TakeProfitPrice: floatPtr(46000), StopLossPrice: floatPtr(39000),
	}
	_, err := svc.CreateOrder(context.Background(), req, 1)
	if err == nil || !strings.Contains(err.Error(), "stop loss rejected") {
		t.Errorf("compensation failure must not mask the original error, got %v", err)
	}
}

func TestPlaceOCOPersistFailureEscalatesBothLegs(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.acks = []*exchange.OrderAck{
		{VenueOrderID: "v-tp", Status: "open"},
		{VenueOrderID: "v-sl", Status: "open"},
	}
	repo := newFakeOrderRepo()
	repo.failCreateOn = 2
	notifier := &fakeNotifier{}
	svc := newTestOrderService(conn, repo, notifier)

	req := &model.OrderRequest{
		Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideSell,
		Type: model.TypeOCO, Quantity: 0.5,
		TakeProfitPrice: floatPtr(46000), StopLossPrice: floatPtr(39000),
	}
	_, err := svc.CreateOrder(context.Background(), req, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(repo.orders) != 0 {
		t.Errorf("transaction should roll back both legs, got %d rows", len(repo.orders))
	}
	if len(notifier.events) != 1 {
		t.Fatalf("expected one reconciliation alert, got %d", len(notifier.events))
	}
	ids := notifier.events[0].VenueOrderIDs
	if len(ids) != 2 || ids[0] != "v-tp" || ids[1] != "v-sl" {
		t.Errorf("alert must name both venue order ids, got %v", ids)
	}
}

func seedOrder(repo *fakeOrderRepo, userID uint, status model.OrderStatus, venueID string) *model.Order {
	order := &model.Order{
		UserID:       userID,
		Exchange:     "binance",
		Symbol:       "BTC/USDT",
		Side:         model.SideBuy,
		Type:         model.TypeLimit,
		Status:       status,
		Quantity:     1,
		VenueOrderID: venueID,
	}
	_ = repo.Create(context.Background(), order)
	return order
}

func TestCancelOrderRejectsTerminalStates(t *testing.T) {
	conn := marketConn(btcMarket())
	repo := newFakeOrderRepo()
	svc := newTestOrderService(conn, repo, &fakeNotifier{})

	for _, status := range []model.OrderStatus{model.StatusFilled, model.StatusCanceled, model.StatusRejected, model.StatusExpired} {
		order := seedOrder(repo, 1, status, "v-term")
		_, err := svc.CancelOrder(context.Background(), order.ID, 1)
		if !model.IsValidation(err) {
			t.Errorf("cancel of %s order should be rejected, got %v", status, err)
		}
	}
	if len(conn.canceled) != 0 {
		t.Errorf("terminal orders must never reach the venue, canceled=%v", conn.canceled)
	}
}

func TestCancelOrderVenueFirstThenLocal(t *testing.T) {
	conn := marketConn(btcMarket())
	repo := newFakeOrderRepo()
	svc := newTestOrderService(conn, repo, &fakeNotifier{})
	order := seedOrder(repo, 1, model.StatusNew, "v-9")

	canceled, err := svc.CancelOrder(context.Background(), order.ID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if canceled.Status != model.StatusCanceled {
		t.Errorf("expected CANCELED, got %s", canceled.Status)
	}
	if len(conn.canceled) != 1 || conn.canceled[0] != "v-9" {
		t.Errorf("venue cancel not issued, canceled=%v", conn.canceled)
	}
	if repo.orders[order.ID].Status != model.StatusCanceled {
		t.Error("local status not updated")
	}
}

func TestCancelOrderRejectedWhenVenueReportsFilled(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.cancelErr = errors.New("order already filled")
	repo := newFakeOrderRepo()
	svc := newTestOrderService(conn, repo, &fakeNotifier{})
	order := seedOrder(repo, 1, model.StatusNew, "v-10")

	_, err := svc.CancelOrder(context.Background(), order.ID, 1)
	if !model.IsValidation(err) {
		t.Fatalf("expected validation rejection when the fill won the race, got %v", err)
	}
	if repo.orders[order.ID].Status != model.StatusNew {
		t.Error("local status must stay untouched when cancellation is rejected")
	}
}

func TestCancelOrderCascadesToLinkedLeg(t *testing.T) {
	conn := marketConn(btcMarket())
	repo := newFakeOrderRepo()
	svc := newTestOrderService(conn, repo, &fakeNotifier{})

	legA := seedOrder(repo, 1, model.StatusNew, "v-a")
	legB := seedOrder(repo, 1, model.StatusNew, "v-b")
	legA.OCOLinkedOrderID = &legB.ID
	legB.OCOLinkedOrderID = &legA.ID
	_ = repo.Update(context.Background(), legA)
	_ = repo.Update(context.Background(), legB)

	if _, err := svc.CancelOrder(context.Background(), legA.ID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.orders[legA.ID].Status != model.StatusCanceled {
		t.Error("primary leg not canceled")
	}
	if repo.orders[legB.ID].Status != model.StatusCanceled {
		t.Error("linked leg not canceled")
	}
	if len(conn.canceled) != 2 {
		t.Errorf("expected both venue cancels, got %v", conn.canceled)
	}
}

func TestCancelLinkedLegFailureDoesNotFailPrimary(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.cancelErr = errors.New("venue glitch")
	conn.cancelErrOn = 2
	repo := newFakeOrderRepo()
	svc := newTestOrderService(conn, repo, &fakeNotifier{})

	legA := seedOrder(repo, 1, model.StatusNew, "v-a")
	legB := seedOrder(repo, 1, model.StatusNew, "v-b")
	legA.OCOLinkedOrderID = &legB.ID
	legB.OCOLinkedOrderID = &legA.ID
	_ = repo.Update(context.Background(), legA)
	_ = repo.Update(context.Background(), legB)

	canceled, err := svc.CancelOrder(context.Background(), legA.ID, 1)
	if err != nil {
		t.Fatalf("primary cancellation must succeed, got %v", err)
	}
	if canceled.Status != model.StatusCanceled {
		t.Errorf("expected CANCELED, got %s", canceled.Status)
	}
	// Partial OCO cancellation is an accepted, visible outcome.
	if repo.orders[legB.ID].Status != model.StatusNew {
		t.Error("failed linked cancel should leave the sibling untouched")
	}
}

func TestCreateOrderAttachesProtectiveOrders(t *testing.T) {
	conn := marketConn(btcMarket())
	repo := newFakeOrderRepo()
	svc := newTestOrderService(conn, repo, &fakeNotifier{})

	req := &model.OrderRequest{
		Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideBuy,
		Type: model.TypeMarket, Quantity: 0.5,
		StopLossPrice: floatPtr(39000), TakeProfitPrice: floatPtr(46000),
	}
	entry, err := svc.CreateOrder(context.Background(), req, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry == nil || entry.ID == 0 {
		t.Fatal("entry order not persisted")
	}

	if len(conn.submits) != 3 {
		t.Fatalf("expected entry plus two protective submissions, got %d", len(conn.submits))
	}
	if conn.submits[1].orderType != string(model.TypeStopLoss) || conn.submits[1].side != string(model.SideSell) {
		t.Errorf("expected protective SELL stop-loss, got %+v", conn.submits[1])
	}
	if conn.submits[2].orderType != string(model.TypeTakeProfit) || conn.submits[2].side != string(model.SideSell) {
		t.Errorf("expected protective SELL take-profit, got %+v", conn.submits[2])
	}
	if len(repo.orders) != 3 {
		t.Errorf("expected three persisted orders, got %d", len(repo.orders))
	}
}

func TestProtectiveOrderFailureDoesNotFailEntry(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.submitErrs = []error{nil, errors.New("stop loss rejected"), errors.New("take profit rejected")}
	repo := newFakeOrderRepo()
	svc := newTestOrderService(conn, repo, &fakeNotifier{})

	req := &model.OrderRequest{
		Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideBuy,
		Type: model.TypeMarket, Quantity: 0.5,
		StopLossPrice: floatPtr(39000), TakeProfitPrice: floatPtr(46000),
	}
	entry, err := svc.CreateOrder(context.Background(), req, 1)
	if err != nil {
		t.Fatalf("entry order must succeed despite protective failures, got %v", err)
	}
	if entry.ID == 0 || len(repo.orders) != 1 {
		t.Errorf("expected exactly the entry order persisted, got %d rows", len(repo.orders))
	}
}

func TestGetOrderEnforcesOwnership(t *testing.T) {
	repo := newFakeOrderRepo()
	svc := newTestOrderService(marketConn(btcMarket()), repo, &fakeNotifier{})
	order := seedOrder(repo, 1, model.StatusNew, "v-1")

	if _, err := svc.GetOrder(context.Background(), 2, order.ID); !errors.Is(err, model.ErrOrderNotFound) {
		t.Errorf("expected not-found for foreign order, got %v", err)
	}
	if _, err := svc.GetOrder(context.Background(), 1, order.ID); err != nil {
		t.Errorf("owner should read their order, got %v", err)
	}
}

func TestPreviewComputesEconomicsWithoutSideEffects(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.ticker = &exchange.Ticker{Symbol: "BTC/USDT", Last: 40000}
	conn.book = &exchange.OrderBook{Asks: []exchange.BookLevel{{Price: 40000, Quantity: 0.2}, {Price: 44000, Quantity: 1}}}
	conn.balances = map[string]exchange.AssetBalance{"USDT": {Free: 100}}
	repo := newFakeOrderRepo()
	svc := newTestOrderService(conn, repo, &fakeNotifier{})

	req := &model.OrderRequest{
		Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideBuy,
		Type: model.TypeMarket, Quantity: 0.5,
	}
	preview, err := svc.PreviewOrder(context.Background(), req, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if preview.MarketPrice != 40000 {
		t.Errorf("expected market price 40000, got %v", preview.MarketPrice)
	}
	if preview.EstimatedCost != 20000 {
		t.Errorf("expected notional 20000, got %v", preview.EstimatedCost)
	}
	// weighted = (0.2*40000 + 0.3*44000) / 0.5 = 42400 -> 6% slippage
	if preview.EstimatedSlippage != 6.0 {
		t.Errorf("expected slippage 6.0, got %v", preview.EstimatedSlippage)
	}
	if preview.SufficientBalance {
		t.Error("100 USDT cannot cover a 20000 USDT order")
	}
	if len(preview.Warnings) != 2 {
		t.Errorf("expected insufficient-balance and high-slippage warnings, got %v", preview.Warnings)
	}
	if len(preview.SupportedOrderTypes) == 0 {
		t.Error("expected supported order types from the venue profile")
	}

	if len(conn.submits) != 0 {
		t.Error("preview must never submit to the venue")
	}
	if len(repo.orders) != 0 {
		t.Error("preview must never persist")
	}
}

func TestPreviewManualWarnsOnPriceDeviation(t *testing.T) {
	conn := marketConn(btcMarket())
	conn.ticker = &exchange.Ticker{Symbol: "BTC/USDT", Last: 40000}
	conn.balances = map[string]exchange.AssetBalance{"USDT": {Free: 1000000}}
	svc := newTestOrderService(conn, newFakeOrderRepo(), &fakeNotifier{})

	req := &model.OrderRequest{
		Exchange: "binance", Symbol: "BTC/USDT", Side: model.SideBuy,
		Type: model.TypeLimit, Quantity: 0.5, Price: floatPtr(50000),
	}

	manual, err := svc.PreviewManualOrder(context.Background(), req, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !containsWarning(manual.Warnings, "deviates") {
		t.Errorf("expected price deviation warning, got %v", manual.Warnings)
	}

	plain, err := svc.PreviewOrder(context.Background(), req, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if containsWarning(plain.Warnings, "deviates") {
		t.Errorf("deviation warning is manual-only, got %v", plain.Warnings)
	}
}

func containsWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
