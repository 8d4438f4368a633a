package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"storefront/internal/models"

	amqp "github.com/streadway/amqp"
)

const (
	DefaultOrderQueue       = "order_created"
	DefaultFulfillmentQueue = "order_fulfillment"
	consumerTag             = "storefront-fulfillment"
)

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	// amqp channels are not safe for concurrent publishing
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL              string
	OrderQueue       string
	FulfillmentQueue string
}

func (c Config) withDefaults() Config {
	if c.OrderQueue == "" {
		c.OrderQueue = DefaultOrderQueue
	}
	if c.FulfillmentQueue == "" {
		c.FulfillmentQueue = DefaultFulfillmentQueue
	}
	return c
}

// NewClient connects to RabbitMQ and declares the durable order and fulfillment queues.
func NewClient(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	for _, name := range []string{cfg.OrderQueue, cfg.FulfillmentQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to declare %s: %w", name, err)
		}
	}

	log.Printf("RabbitMQ client connected, queues %s and %s declared.", cfg.OrderQueue, cfg.FulfillmentQueue)

	return &Client{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
	}, nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// PublishOrderCreated publishes a persistent JSON order.created event.
func (c *Client) PublishOrderCreated(ctx context.Context, event models.OrderCreatedEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		"",
		c.cfg.OrderQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         "order.created",
			MessageId:    event.OrderID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	log.Printf(" [x] Sent order.created for %s", event.OrderID)
	return nil
}

// FulfillmentHandler applies one decoded fulfillment update.
type FulfillmentHandler func(ctx context.Context, update models.FulfillmentUpdate) error

// ConsumeFulfillment starts a goroutine that feeds fulfillment messages to
// handler until ctx is done. The returned channel is closed when it stops.
func (c *Client) ConsumeFulfillment(ctx context.Context, handler FulfillmentHandler) (<-chan struct{}, error) {
	if c.channel == nil {
		return nil, fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.cfg.FulfillmentQueue,
		consumerTag,
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	log.Printf(" [*] Waiting for fulfillment updates on %s", c.cfg.FulfillmentQueue)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				if err := c.channel.Cancel(consumerTag, false); err != nil {
					log.Printf("Error cancelling consumer: %v", err)
				}
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				HandleFulfillmentDelivery(ctx, msg, handler)
			}
		}
	}()

	return done, nil
}

// HandleFulfillmentDelivery decodes and applies one delivery, then acks it.
// Malformed bodies are rejected outright; a failed update is requeued once and
// dropped on redelivery.
func HandleFulfillmentDelivery(ctx context.Context, msg amqp.Delivery, handler FulfillmentHandler) {
	var update models.FulfillmentUpdate
	if err := json.Unmarshal(msg.Body, &update); err != nil {
		log.Printf("Rejecting malformed fulfillment message %d: %v", msg.DeliveryTag, err)
		if rejectErr := msg.Reject(false); rejectErr != nil {
			log.Printf("Error rejecting message %d: %v", msg.DeliveryTag, rejectErr)
		}
		return
	}

	if err := handler(ctx, update); err != nil {
		requeue := !msg.Redelivered
		log.Printf("Error processing fulfillment for order %s (requeue=%t): %v", update.OrderID, requeue, err)
		if nackErr := msg.Nack(false, requeue); nackErr != nil {
			log.Printf("Error nacking message %d: %v", msg.DeliveryTag, nackErr)
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		log.Printf("Error acking message %d: %v", msg.DeliveryTag, ackErr)
	}
}
