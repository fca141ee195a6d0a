// Package events publishes committed ballots to Kafka for downstream audit
// consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-election-system/shared/models"
)

// ErrQueueFull is returned when the publish buffer has no room left
var ErrQueueFull = errors.New("ballot event queue full, event dropped")

// ErrClosed is returned by PublishBallot after Close
var ErrClosed = errors.New("ballot event publisher closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config tunes the publisher
type Config struct {
	Broker       string
	Topic        string
	Workers      int
	QueueSize    int
	WriteTimeout time.Duration
}

// KafkaPublisher hands ballot events to a pool of workers that write them
// to Kafka. Publishing never blocks the caller.
type KafkaPublisher struct {
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
	events       chan models.BallotEvent
	workerCount  int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewKafkaPublisher creates a publisher writing to cfg.Broker
func NewKafkaPublisher(cfg Config) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Broker),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		RequiredAcks: kafka.RequireAll,
	}
	return newPublisher(writer, cfg)
}

func newPublisher(w messageWriter, cfg Config) *KafkaPublisher {
	if cfg.Topic == "" {
		cfg.Topic = "ballot-events"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	kp := &KafkaPublisher{
		writer:       w,
		topic:        cfg.Topic,
		writeTimeout: cfg.WriteTimeout,
		events:       make(chan models.BallotEvent, cfg.QueueSize),
		workerCount:  cfg.Workers,
	}
	for i := 0; i < kp.workerCount; i++ {
		kp.wg.Add(1)
		go kp.worker(i)
	}
	logrus.WithFields(logrus.Fields{"topic": kp.topic, "workers": kp.workerCount}).Info("Ballot event publisher started")
	return kp
}

// worker drains the queue until it is closed
func (kp *KafkaPublisher) worker(id int) {
	defer kp.wg.Done()
	for event := range kp.events {
		if err := kp.write(event); err != nil {
			logrus.WithFields(logrus.Fields{
				"worker":    id,
				"ballot_id": event.BallotID,
				"tenant_id": event.TenantID,
			}).WithError(err).Error("Failed to publish ballot event")
		}
	}
}

// PublishBallot queues an event without blocking
func (kp *KafkaPublisher) PublishBallot(_ context.Context, event models.BallotEvent) error {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	if kp.closed {
		return ErrClosed
	}

	select {
	case kp.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (kp *KafkaPublisher) write(event models.BallotEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal ballot event: %w", err)
	}

	msg := kafka.Message{
		Topic: kp.topic,
		Key:   []byte(event.TenantID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "tenant_id", Value: []byte(event.TenantID.String())},
			{Key: "position", Value: []byte(event.Position)},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), kp.writeTimeout)
	defer cancel()
	if err := kp.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write ballot event to Kafka: %w", err)
	}
	return nil
}

// Close stops accepting events, flushes the queue and closes the writer
func (kp *KafkaPublisher) Close() error {
	kp.mu.Lock()
	if kp.closed {
		kp.mu.Unlock()
		return nil
	}
	kp.closed = true
	close(kp.events)
	kp.mu.Unlock()

	kp.wg.Wait()
	if err := kp.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	logrus.Info("Ballot event publisher stopped")
	return nil
}
