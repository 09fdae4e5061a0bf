package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/richardliu001/ecommerce-analytics/internal/config"
)

// topicFor maps an exchange routing key to a concrete Kafka topic.
func topicFor(exchange, routingKey string) string {
	return exchange + "." + routingKey
}

// KafkaPublisher writes exchange messages, one writer per routing key.
type KafkaPublisher struct {
	writers map[string]*kafka.Writer
	log     *zap.SugaredLogger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log *zap.SugaredLogger) *KafkaPublisher {
	writers := make(map[string]*kafka.Writer, len(cfg.RoutingKeys))
	for _, rk := range cfg.RoutingKeys {
		writers[rk] = &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    topicFor(cfg.Exchange, rk),
			Balancer: &kafka.LeastBytes{},
		}
	}
	return &KafkaPublisher{writers: writers, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, routingKey string, key, payload []byte) error {
	w, ok := p.writers[routingKey]
	if !ok {
		return fmt.Errorf("no binding for routing key %q", routingKey)
	}
	return w.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: payload,
		Time:  time.Now(),
	})
}

func (p *KafkaPublisher) Close() error {
	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// KafkaSubscriber is the durable queue: a consumer group over every bound
// topic. A message's offset is only committed once its outcome is final, so
// a crash before commit causes redelivery (at-least-once).
type KafkaSubscriber struct {
	reader     *kafka.Reader
	deadLetter *kafka.Writer
	exchange   string
	maxRetries int
	retryWait  time.Duration
	log        *zap.SugaredLogger
}

func NewKafkaSubscriber(cfg config.KafkaConfig, log *zap.SugaredLogger) *KafkaSubscriber {
	topics := make([]string, 0, len(cfg.RoutingKeys))
	for _, rk := range cfg.RoutingKeys {
		topics = append(topics, topicFor(cfg.Exchange, rk))
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	dlq := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.DeadLetterTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaSubscriber{
		reader:     reader,
		deadLetter: dlq,
		exchange:   cfg.Exchange,
		maxRetries: cfg.MaxRetries,
		retryWait:  cfg.RetryBackoff.Std(),
		log:        log,
	}
}

// Consume fetches deliveries until ctx is cancelled. Fetch faults are retried
// with exponential backoff and jitter instead of a fixed reconnect delay.
func (s *KafkaSubscriber) Consume(ctx context.Context, h Handler) error {
	fetchBackoff := backoff.NewExponentialBackOff()
	fetchBackoff.MaxElapsedTime = 0 // retry until cancelled

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := fetchBackoff.NextBackOff()
			s.log.Errorf("fetch message: %v (retrying in %s)", err, wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		fetchBackoff.Reset()

		d := Delivery{
			RoutingKey: s.routingKeyFor(msg.Topic),
			Key:        msg.Key,
			Body:       msg.Value,
		}
		s.handle(ctx, h, d)

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// uncommitted offset means redelivery; the consumer's dedup
			// absorbs it
			s.log.Errorf("commit offset: %v", err)
		}
	}
}

// handle drives a delivery to a final outcome: Requeue is retried in-process
// up to maxRetries, then the message is parked on the dead-letter topic.
func (s *KafkaSubscriber) handle(ctx context.Context, h Handler, d Delivery) {
	for attempt := 0; ; attempt++ {
		out := h(ctx, d)
		switch out {
		case Ack:
			return
		case Requeue:
			if attempt >= s.maxRetries {
				s.log.Warnf("delivery on %s exhausted %d retries, dead-lettering", d.RoutingKey, s.maxRetries)
				s.park(ctx, d)
				return
			}
			select {
			case <-time.After(s.retryWait << uint(attempt)):
			case <-ctx.Done():
				return
			}
		case DeadLetter:
			s.park(ctx, d)
			return
		default:
			s.log.Errorf("handler returned unknown outcome %d, dead-lettering", out)
			s.park(ctx, d)
			return
		}
	}
}

func (s *KafkaSubscriber) park(ctx context.Context, d Delivery) {
	msg := kafka.Message{
		Key:   d.Key,
		Value: d.Body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "x-original-routing-key", Value: []byte(d.RoutingKey)},
		},
	}
	if err := s.deadLetter.WriteMessages(ctx, msg); err != nil {
		s.log.Errorf("dead-letter publish: %v", err)
	}
}

func (s *KafkaSubscriber) routingKeyFor(topic string) string {
	prefix := s.exchange + "."
	if len(topic) > len(prefix) && topic[:len(prefix)] == prefix {
		return topic[len(prefix):]
	}
	return topic
}

func (s *KafkaSubscriber) Close() error {
	if err := s.reader.Close(); err != nil {
		return err
	}
	return s.deadLetter.Close()
}
