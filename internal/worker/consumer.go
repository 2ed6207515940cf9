// Package worker consumes standardization and match requests from RabbitMQ
// and publishes the results.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultQueue           = "skillmatch.requests"
	DefaultResultsExchange = "skillmatch.results"
)

// Config configures the consumer.
type Config struct {
	URL             string `mapstructure:"url"`
	Queue           string `mapstructure:"queue"`
	ResultsExchange string `mapstructure:"results-exchange"`
	Concurrency     int    `mapstructure:"concurrency"`
}

type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type requestHandler interface {
	Handle(ctx context.Context, req *Request) (any, error)
}

// Consumer reads requests from a durable queue with manual acknowledgements.
type Consumer struct {
	cfg     Config
	handler requestHandler
	logger  *zap.Logger
	now     func() time.Time
}

func NewConsumer(cfg Config, handler *Handler, logger *zap.Logger) *Consumer {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.ResultsExchange == "" {
		cfg.ResultsExchange = DefaultResultsExchange
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Consumer{cfg: cfg, handler: handler, logger: logger.Named("worker"), now: time.Now}
}

// Run consumes until ctx is cancelled or the broker closes the channel.
func (c *Consumer) Run(ctx context.Context) error {
	if c.cfg.URL == "" {
		return errors.New("amqp url is required")
	}

	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(
		c.cfg.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", c.cfg.Queue, err)
	}

	if err := ch.ExchangeDeclare(
		c.cfg.ResultsExchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.cfg.ResultsExchange, err)
	}

	if err := ch.Qos(c.cfg.Concurrency, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.cfg.Queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}

	c.logger.Info("worker started",
		zap.String("queue", c.cfg.Queue),
		zap.String("results_exchange", c.cfg.ResultsExchange),
		zap.Int("concurrency", c.cfg.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := range c.cfg.Concurrency {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case d, ok := <-deliveries:
					if !ok {
						return errors.New("delivery channel closed")
					}
					c.logger.Debug("message received", zap.Int("worker", i+1), zap.Uint64("delivery_tag", d.DeliveryTag))
					c.process(gctx, ch, d)
				}
			}
		})
	}

	return g.Wait()
}

// process handles one delivery and settles it. Malformed messages are
// rejected; other failures are requeued once and rejected on redelivery.
func (c *Consumer) process(ctx context.Context, pub publisher, d amqp.Delivery) {
	req, err := decodeRequest(d.Body)
	var result any
	if err == nil {
		result, err = c.handler.Handle(ctx, req)
	}

	log := c.logger
	if req != nil {
		log = log.With(zap.String("request_id", req.RequestID), zap.String("kind", req.Kind))
	}

	if err != nil {
		permanent := errors.Is(err, errMalformed)
		if !permanent && !d.Redelivered {
			log.Warn("request failed, requeueing", zap.Error(err))
			if nackErr := d.Nack(false, true); nackErr != nil {
				log.Error("failed to nack message", zap.Error(nackErr))
			}
			return
		}

		log.Error("request failed", zap.Bool("malformed", permanent), zap.Error(err))
		if req != nil && req.RequestID != "" {
			c.publish(pub, log, Response{RequestID: req.RequestID, Status: StatusFailed, Error: err.Error()})
		}
		if rejectErr := d.Reject(false); rejectErr != nil {
			log.Error("failed to reject message", zap.Error(rejectErr))
		}
		return
	}

	if pubErr := c.publish(pub, log, Response{RequestID: req.RequestID, Status: StatusCompleted, Result: result}); pubErr != nil {
		if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
			log.Error("failed to nack message", zap.Error(nackErr))
		}
		return
	}

	log.Info("request completed")
	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("failed to ack message", zap.Error(ackErr))
	}
}

func (c *Consumer) publish(pub publisher, log *zap.Logger, resp Response) error {
	resp.Timestamp = c.now().UTC()

	body, err := json.Marshal(resp)
	if err != nil {
		log.Error("failed to marshal response", zap.Error(err))
		return err
	}

	err = pub.Publish(
		c.cfg.ResultsExchange,
		fmt.Sprintf("result.%s", resp.RequestID),
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			CorrelationId: resp.RequestID,
			Timestamp:     resp.Timestamp,
			Body:          body,
		},
	)
	if err != nil {
		log.Error("failed to publish response", zap.Error(err))
	}
	return err
}
