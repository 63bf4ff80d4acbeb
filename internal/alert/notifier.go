// Package alert routes reconciliation-critical events to an operator channel.
// These events mean the venue accepted an order but the local store did not
// record it; they must reach a human with enough detail to reconcile by hand.
package alert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"
)

// ReconciliationEvent identifies an order that exists on a venue but not in
// the local store.
type ReconciliationEvent struct {
	Exchange      string    `json:"exchange"`
	VenueOrderIDs []string  `json:"venue_order_ids"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Quantity      float64   `json:"quantity"`
	UserID        uint      `json:"user_id"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notifier delivers reconciliation events to operators. Delivery is
// best-effort: a notifier failure is logged, never propagated, because the
// originating request is already failing for a worse reason.
type Notifier interface {
	ReconciliationFailure(event ReconciliationEvent)
	Close()
}

// kafkaNotifier publishes events to an ops topic.
type kafkaNotifier struct {
	producer *kafka.Producer
	topic    string
	logger   *logrus.Logger
}

// NewKafkaNotifier connects a producer to broker and starts the delivery
// report loop.
func NewKafkaNotifier(broker, topic string, logger *logrus.Logger) (Notifier, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": broker,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	n := &kafkaNotifier{producer: producer, topic: topic, logger: logger}
	go n.deliveryReport()
	logger.WithField("topic", topic).Info("operator alert producer initialized")
	return n, nil
}

func (n *kafkaNotifier) deliveryReport() {
	for e := range n.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				n.logger.Errorf("alert delivery failed: %v", ev.TopicPartition.Error)
			}
		}
	}
}

func (n *kafkaNotifier) ReconciliationFailure(event ReconciliationEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.WithError(err).Error("failed to marshal reconciliation event")
		return
	}

	err = n.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &n.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.Exchange),
		Value:          payload,
	}, nil)
	if err != nil {
		n.logger.WithError(err).WithField("event", string(payload)).
			Error("failed to publish reconciliation event, operator must check logs")
	}
}

func (n *kafkaNotifier) Close() {
	n.producer.Flush(5000)
	n.producer.Close()
}

// logNotifier is the fallback when no broker is configured: the event still
// lands in the log at the highest severity.
type logNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) ReconciliationFailure(event ReconciliationEvent) {
	n.logger.WithFields(logrus.Fields{
		"exchange":        event.Exchange,
		"venue_order_ids": event.VenueOrderIDs,
		"symbol":          event.Symbol,
		"side":            event.Side,
		"quantity":        event.Quantity,
		"user_id":         event.UserID,
	}).Error("RECONCILIATION REQUIRED: venue order exists without local record")
}

func (n *logNotifier) Close() {}
