package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/aminsb/tradedesk/internal/alert"
	"github.com/aminsb/tradedesk/internal/exchange"
	"github.com/aminsb/tradedesk/internal/model"
	"github.com/aminsb/tradedesk/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// Preview warning thresholds.
	priceDeviationWarnPct = 10.0
	slippageWarnPct       = 1.0
	previewBookDepth      = 50
)

// OrderService orchestrates order validation, venue submission, durable
// persistence and the derived views over the order store.
type OrderService struct {
	orders    repository.OrderRepository
	coins     repository.CoinRepository
	registry  exchange.Registry
	validator *Validator
	estimator *Estimator
	alerts    alert.Notifier
	logger    *logrus.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	coins repository.CoinRepository,
	registry exchange.Registry,
	validator *Validator,
	estimator *Estimator,
	alerts alert.Notifier,
	logger *logrus.Logger,
) *OrderService {
	return &OrderService{
		orders:    orders,
		coins:     coins,
		registry:  registry,
		validator: validator,
		estimator: estimator,
		alerts:    alerts,
		logger:    logger,
	}
}

// orderContext is everything resolved before a submission: the connector, the
// venue's market definition, the step-adjusted quantity and the catalog coins.
type orderContext struct {
	conn     exchange.Connector
	market   *exchange.Market
	quantity float64
	base     *model.Coin
	quote    *model.Coin
	symbol   string
}

func (s *OrderService) resolve(ctx context.Context, req *model.OrderRequest, userID uint) (*orderContext, error) {
	conn, err := s.registry.Resolve(ctx, req.Exchange, userID)
	if err != nil {
		return nil, err
	}

	market, quantity, err := s.validator.Validate(ctx, conn, req)
	if err != nil {
		return nil, err
	}

	base, err := s.coins.GetBySymbol(ctx, market.Base)
	if err != nil {
		return nil, model.NewValidationError("unknown base coin %s", market.Base)
	}
	quote, err := s.coins.GetBySymbol(ctx, market.Quote)
	if err != nil {
		return nil, model.NewValidationError("unknown quote coin %s", market.Quote)
	}

	return &orderContext{
		conn:     conn,
		market:   market,
		quantity: quantity,
		base:     base,
		quote:    quote,
		symbol:   market.Symbol,
	}, nil
}

// checkConditionalFields enforces the per-type required fields before any
// venue call.
func checkConditionalFields(req *model.OrderRequest) error {
	switch req.Type {
	case model.TypeLimit:
		if req.Price == nil {
			return model.NewValidationError("LIMIT order requires a price")
		}
	case model.TypeStopLoss:
		if req.StopPrice == nil {
			return model.NewValidationError("STOP_LOSS order requires a stop price")
		}
	case model.TypeStopLimit:
		if req.StopPrice == nil || req.Price == nil {
			return model.NewValidationError("STOP_LIMIT order requires both stop price and limit price")
		}
	case model.TypeTrailingStop:
		if req.TrailingDelta == nil || req.TrailingType == nil {
			return model.NewValidationError("TRAILING_STOP order requires trailing delta and trailing type")
		}
	case model.TypeTakeProfit:
		if req.TakeProfitPrice == nil {
			return model.NewValidationError("TAKE_PROFIT order requires a take-profit price")
		}
	case model.TypeOCO:
		if req.TakeProfitPrice == nil || req.StopLossPrice == nil {
			return model.NewValidationError("OCO order requires both take-profit and stop-loss prices")
		}
	}
	return nil
}

func newClientOrderID() string {
	return "td-" + uuid.NewString()
}

// venueParams shapes the per-type submission parameters for the connector.
func venueParams(req *model.OrderRequest, clientOrderID string) map[string]any {
	params := map[string]any{"client_order_id": clientOrderID}
	if req.TimeInForce != "" {
		params["time_in_force"] = req.TimeInForce
	}
	switch req.Type {
	case model.TypeStopLoss, model.TypeStopLimit:
		params["stop_price"] = *req.StopPrice
	case model.TypeTrailingStop:
		params["trailing_delta"] = *req.TrailingDelta
		params["trailing_type"] = string(*req.TrailingType)
	case model.TypeTakeProfit:
		params["stop_price"] = *req.TakeProfitPrice
	}
	return params
}

// CreateOrder validates, submits and durably persists a single (non-OCO)
// order. The venue call and the local insert run inside one local
// transaction; a venue success followed by a persistence failure escalates to
// the operator channel and is never silently rolled back venue-side.
func (s *OrderService) CreateOrder(ctx context.Context, req *model.OrderRequest, userID uint) (*model.Order, error) {
	if req.Type == model.TypeOCO {
		return s.placeOCO(ctx, req, userID)
	}
	if err := checkConditionalFields(req); err != nil {
		return nil, err
	}

	oc, err := s.resolve(ctx, req, userID)
	if err != nil {
		return nil, err
	}

	feeRate := s.estimator.ResolveFeeRate(ctx, oc.conn, oc.market, req.Type)
	clientOrderID := newClientOrderID()

	var ack *exchange.OrderAck
	order := &model.Order{}
	txErr := s.orders.Transaction(ctx, func(repo repository.OrderRepository) error {
		a, err := oc.conn.SubmitOrder(ctx, oc.symbol, string(req.Type), string(req.Side), oc.quantity, req.Price, venueParams(req, clientOrderID))
		if err != nil {
			return &model.ExecutionError{Op: "submit order", Err: err}
		}
		ack = a
		*order = *s.buildOrder(req, userID, oc, ack, clientOrderID, feeRate)
		return repo.Create(ctx, order)
	})
	if txErr != nil {
		if ack != nil {
			// Venue state is authoritative: the order exists out there and
			// cannot be reversed by a local rollback.
			s.escalate(req, userID, []string{ack.VenueOrderID}, txErr)
			return nil, errors.New("failed to place order")
		}
		return nil, txErr
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"venue_order_id": order.VenueOrderID,
		"exchange":       order.Exchange,
		"symbol":         order.Symbol,
	}).Info("order placed")

	// Protective attachments ride outside the entry transaction: the entry
	// order already succeeded, so their failure must not undo it.
	if req.Type != model.TypeStopLoss && req.Type != model.TypeTakeProfit {
		s.attachProtectiveOrders(ctx, oc, req, userID, order)
	}
	return order, nil
}

// PlaceManualOrder places a user-entered order. All seven order types are
// supported; OCO takes the two-leg saga path.
func (s *OrderService) PlaceManualOrder(ctx context.Context, req *model.OrderRequest, userID uint) (*model.Order, error) {
	req.IsManual = true
	return s.CreateOrder(ctx, req, userID)
}

// placeOCO runs the two-leg saga: submit the take-profit leg, then the
// stop-loss leg, compensating by canceling the take-profit leg if the second
// submission fails. Persistence of both legs is one transaction with two-step
// cross-linking.
func (s *OrderService) placeOCO(ctx context.Context, req *model.OrderRequest, userID uint) (*model.Order, error) {
	if err := checkConditionalFields(req); err != nil {
		return nil, err
	}

	oc, err := s.resolve(ctx, req, userID)
	if err != nil {
		return nil, err
	}
	feeRate := s.estimator.ResolveFeeRate(ctx, oc.conn, oc.market, model.TypeLimit)

	tpReq := *req
	tpReq.Type = model.TypeLimit
	tpReq.Price = req.TakeProfitPrice
	tpClientID := newClientOrderID()

	slReq := *req
	slReq.Type = model.TypeStopLoss
	slReq.Price = nil
	slReq.StopPrice = req.StopLossPrice
	slClientID := newClientOrderID()

	tpAck, err := oc.conn.SubmitOrder(ctx, oc.symbol, string(model.TypeLimit), string(req.Side), oc.quantity, tpReq.Price, venueParams(&tpReq, tpClientID))
	if err != nil {
		return nil, &model.ExecutionError{Op: "submit take-profit leg", Err: err}
	}

	slAck, err := oc.conn.SubmitOrder(ctx, oc.symbol, string(model.TypeStopLoss), string(req.Side), oc.quantity, nil, venueParams(&slReq, slClientID))
	if err != nil {
		// Compensate: the take-profit leg is live on the venue with no
		// sibling. Cancel it before surfacing the original error.
		if cancelErr := oc.conn.CancelOrder(ctx, tpAck.VenueOrderID, oc.symbol); cancelErr != nil {
			s.logger.WithError(cancelErr).WithFields(logrus.Fields{
				"venue_order_id": tpAck.VenueOrderID,
				"exchange":       req.Exchange,
				"symbol":         oc.symbol,
			}).Error("failed to cancel take-profit leg after stop-loss submission failure")
		}
		return nil, &model.ExecutionError{Op: "submit stop-loss leg", Err: err}
	}

	// Both legs persist as OCO rows; LIMIT/STOP_LOSS were only their wire
	// types on the venue.
	tpOrder := s.buildOrder(&tpReq, userID, oc, tpAck, tpClientID, feeRate)
	slOrder := s.buildOrder(&slReq, userID, oc, slAck, slClientID, feeRate)
	tpOrder.Type = model.TypeOCO
	slOrder.Type = model.TypeOCO
	tpOrder.TakeProfitPrice = req.TakeProfitPrice
	slOrder.StopLossPrice = req.StopLossPrice

	// Neither leg's id exists before its own insert, so the cyclic link is a
	// two-step write: insert A, insert B referencing A, update A with B.
	txErr := s.orders.Transaction(ctx, func(repo repository.OrderRepository) error {
		if err := repo.Create(ctx, tpOrder); err != nil {
			return err
		}
		slOrder.OCOLinkedOrderID = &tpOrder.ID
		if err := repo.Create(ctx, slOrder); err != nil {
			return err
		}
		tpOrder.OCOLinkedOrderID = &slOrder.ID
		return repo.Update(ctx, tpOrder)
	})
	if txErr != nil {
		s.escalate(req, userID, []string{tpAck.VenueOrderID, slAck.VenueOrderID}, txErr)
		return nil, errors.New("failed to place OCO order")
	}

	s.logger.WithFields(logrus.Fields{
		"take_profit_order": tpOrder.ID,
		"stop_loss_order":   slOrder.ID,
		"exchange":          req.Exchange,
		"symbol":            oc.symbol,
	}).Info("OCO pair placed")
	return tpOrder, nil
}

// buildOrder constructs the durable row from the venue acknowledgement,
// falling back to the requested values where the venue omitted a field.
func (s *OrderService) buildOrder(req *model.OrderRequest, userID uint, oc *orderContext, ack *exchange.OrderAck, clientOrderID string, feeRate float64) *model.Order {
	price := req.Price
	if ack.Price > 0 {
		p := ack.Price
		price = &p
	}

	feeAmount := ack.FeeAmount
	feeCurrency := ack.FeeCurrency
	if feeAmount == 0 {
		notional := oc.quantity
		if price != nil {
			notional *= *price
		} else {
			notional *= oc.base.CurrentPrice
		}
		feeAmount = s.estimator.EstimateFee(notional, feeRate)
		feeCurrency = oc.quote.Symbol
	}

	transactTime := ack.TransactTime
	if transactTime.IsZero() {
		transactTime = time.Now()
	}
	clientID := ack.ClientOrderID
	if clientID == "" {
		clientID = clientOrderID
	}

	executed := ack.ExecutedQuantity
	if executed > oc.quantity {
		executed = oc.quantity
	}

	return &model.Order{
		UserID:             userID,
		Exchange:           req.Exchange,
		BaseCoinID:         oc.base.ID,
		QuoteCoinID:        oc.quote.ID,
		Symbol:             oc.symbol,
		Side:               req.Side,
		Type:               req.Type,
		Status:             model.StatusFromVenue(ack.Status),
		Quantity:           oc.quantity,
		Price:              price,
		ExecutedQuantity:   executed,
		Cost:               ack.Cost,
		FeeAmount:          feeAmount,
		FeeCurrency:        feeCurrency,
		StopPrice:          req.StopPrice,
		TrailingDelta:      req.TrailingDelta,
		TrailingType:       req.TrailingType,
		TakeProfitPrice:    req.TakeProfitPrice,
		StopLossPrice:      req.StopLossPrice,
		TimeInForce:        req.TimeInForce,
		VenueOrderID:       ack.VenueOrderID,
		ClientOrderID:      clientID,
		IsManual:           req.IsManual,
		IsAlgorithmicTrade: req.IsAlgorithmicTrade,
		TransactTime:       transactTime,
	}
}

// attachProtectiveOrders submits linked stop-loss / take-profit orders after
// a committed entry order. Best effort: failures are warnings, never an order
// placement failure.
func (s *OrderService) attachProtectiveOrders(ctx context.Context, oc *orderContext, req *model.OrderRequest, userID uint, entry *model.Order) {
	exitSide := model.SideSell
	if req.Side == model.SideSell {
		exitSide = model.SideBuy
	}

	if req.StopLossPrice != nil {
		protective := &model.OrderRequest{
			Exchange:  req.Exchange,
			Symbol:    req.Symbol,
			Side:      exitSide,
			Type:      model.TypeStopLoss,
			Quantity:  oc.quantity,
			StopPrice: req.StopLossPrice,
			IsManual:  req.IsManual,
		}
		if _, err := s.CreateOrder(ctx, protective, userID); err != nil {
			s.logger.WithError(err).WithField("entry_order", entry.ID).
				Warn("failed to attach protective stop-loss order")
		}
	}
	if req.TakeProfitPrice != nil && req.Type != model.TypeTakeProfit {
		protective := &model.OrderRequest{
			Exchange:        req.Exchange,
			Symbol:          req.Symbol,
			Side:            exitSide,
			Type:            model.TypeTakeProfit,
			Quantity:        oc.quantity,
			TakeProfitPrice: req.TakeProfitPrice,
			IsManual:        req.IsManual,
		}
		if _, err := s.CreateOrder(ctx, protective, userID); err != nil {
			s.logger.WithError(err).WithField("entry_order", entry.ID).
				Warn("failed to attach protective take-profit order")
		}
	}
}

// escalate routes a venue-success/store-failure split brain to the operator
// channel. Blind retry could double-submit, so nothing here retries.
func (s *OrderService) escalate(req *model.OrderRequest, userID uint, venueOrderIDs []string, cause error) {
	recErr := &model.ReconciliationError{
		VenueOrderIDs: venueOrderIDs,
		Exchange:      req.Exchange,
		Symbol:        req.Symbol,
		Quantity:      req.Quantity,
		Err:           cause,
	}
	s.logger.WithError(recErr).Error("CRITICAL: venue order persisted remotely but not locally")
	s.alerts.ReconciliationFailure(alert.ReconciliationEvent{
		Exchange:      req.Exchange,
		VenueOrderIDs: venueOrderIDs,
		Symbol:        req.Symbol,
		Side:          string(req.Side),
		Quantity:      req.Quantity,
		UserID:        userID,
		Reason:        cause.Error(),
	})
}

// CancelOrder cancels a NEW or PARTIALLY_FILLED order, venue first. A linked
// OCO sibling is canceled recursively; its failure is a warning, not a
// failure of the primary cancellation.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID uint) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	switch {
	case order.Status == model.StatusFilled:
		return nil, model.NewValidationError("order %d is already filled", orderID)
	case order.Status.Terminal():
		return nil, model.NewValidationError("order %d is already %s", orderID, order.Status)
	case order.Status != model.StatusNew && order.Status != model.StatusPartiallyFilled:
		return nil, model.NewValidationError("order %d cannot be canceled in status %s", orderID, order.Status)
	}

	conn, err := s.registry.Resolve(ctx, order.Exchange, userID)
	if err != nil {
		return nil, err
	}

	if err := conn.CancelOrder(ctx, order.VenueOrderID, order.Symbol); err != nil {
		if venueReportsFilled(err) {
			// The fill won the race; local state catches up via sync.
			return nil, model.NewValidationError("order %d already filled on %s", orderID, order.Exchange)
		}
		return nil, &model.ExecutionError{Op: "cancel order", Err: err}
	}

	order.Status = model.StatusCanceled
	if err := s.orders.Update(ctx, order); err != nil {
		s.escalate(&model.OrderRequest{
			Exchange: order.Exchange,
			Symbol:   order.Symbol,
			Side:     order.Side,
			Quantity: order.Quantity,
		}, userID, []string{order.VenueOrderID}, err)
		return nil, errors.New("failed to cancel order")
	}

	s.logger.WithFields(logrus.Fields{"order_id": order.ID, "exchange": order.Exchange}).Info("order canceled")

	if order.OCOLinkedOrderID != nil {
		if _, err := s.CancelOrder(ctx, *order.OCOLinkedOrderID, userID); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"order_id":        order.ID,
				"linked_order_id": *order.OCOLinkedOrderID,
			}).Warn("failed to cancel linked OCO leg")
		}
	}
	return order, nil
}

// venueReportsFilled recognizes a venue cancel rejection caused by the order
// having already filled or closed.
func venueReportsFilled(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "filled") || strings.Contains(msg, "closed")
}

// PreviewOrder projects an order's economics without submitting or persisting
// anything.
func (s *OrderService) PreviewOrder(ctx context.Context, req *model.OrderRequest, userID uint) (*model.OrderPreview, error) {
	return s.preview(ctx, req, userID, false)
}

// PreviewManualOrder is PreviewOrder plus the manual-entry warnings (limit
// price deviation from market).
func (s *OrderService) PreviewManualOrder(ctx context.Context, req *model.OrderRequest, userID uint) (*model.OrderPreview, error) {
	return s.preview(ctx, req, userID, true)
}

func (s *OrderService) preview(ctx context.Context, req *model.OrderRequest, userID uint, manual bool) (*model.OrderPreview, error) {
	if err := checkConditionalFields(req); err != nil {
		return nil, err
	}
	oc, err := s.resolve(ctx, req, userID)
	if err != nil {
		return nil, err
	}

	ticker, err := oc.conn.FetchTicker(ctx, oc.symbol)
	if err != nil {
		return nil, &model.ExecutionError{Op: "fetch ticker", Err: err}
	}
	marketPrice := ticker.Last

	effectivePrice := marketPrice
	if req.Price != nil {
		effectivePrice = *req.Price
	}
	notional := oc.quantity * effectivePrice

	feeRate := s.estimator.ResolveFeeRate(ctx, oc.conn, oc.market, req.Type)
	feeAmount := s.estimator.EstimateFee(notional, feeRate)

	var slippage float64
	if req.Type == model.TypeMarket {
		book, err := oc.conn.FetchOrderBook(ctx, oc.symbol, previewBookDepth)
		if err != nil {
			s.logger.WithError(err).Warn("order book unavailable, slippage not estimated")
		} else {
			slippage = s.estimator.EstimateSlippage(book, req.Side, oc.quantity)
		}
	}

	balances, err := oc.conn.FetchBalance(ctx)
	if err != nil {
		return nil, &model.ExecutionError{Op: "fetch balance", Err: err}
	}
	var available, required float64
	if req.Side == model.SideBuy {
		available = balances[oc.market.Quote].Free
		required = notional + feeAmount
	} else {
		available = balances[oc.market.Base].Free
		required = oc.quantity
	}
	sufficient := available >= required

	warnings := []string{}
	if !sufficient {
		warnings = append(warnings, "insufficient balance for this order")
	}
	if manual && req.Price != nil && marketPrice > 0 {
		deviation := math.Abs(*req.Price-marketPrice) / marketPrice * 100
		if deviation > priceDeviationWarnPct {
			warnings = append(warnings, "limit price deviates more than 10% from market price")
		}
	}
	if slippage > slippageWarnPct {
		warnings = append(warnings, "estimated slippage is high for this quantity")
	}

	supported := exchange.Profile(req.Exchange).SupportedOrderTypes
	supportedTypes := make([]model.OrderType, len(supported))
	for i, t := range supported {
		supportedTypes[i] = model.OrderType(t)
	}

	return &model.OrderPreview{
		Exchange:            req.Exchange,
		Symbol:              oc.symbol,
		Side:                req.Side,
		Type:                req.Type,
		Quantity:            oc.quantity,
		Price:               req.Price,
		MarketPrice:         marketPrice,
		EstimatedCost:       notional,
		FeeRate:             feeRate,
		FeeAmount:           feeAmount,
		EstimatedSlippage:   slippage,
		AvailableBalance:    available,
		RequiredBalance:     required,
		SufficientBalance:   sufficient,
		Warnings:            warnings,
		SupportedOrderTypes: supportedTypes,
	}, nil
}

// GetOrders lists the user's orders, newest first, with optional filters.
func (s *OrderService) GetOrders(ctx context.Context, userID uint, filters model.OrderFilters) ([]model.Order, error) {
	return s.orders.List(ctx, userID, filters)
}

// GetOrder fetches one order, enforcing ownership.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	return s.orders.GetByID(ctx, userID, orderID)
}
