package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"arena-server/internal/models"
)

// ClientUpdatePublisher publishes per-turn updates for spectating clients.
type ClientUpdatePublisher interface {
	PublishTurnUpdate(ctx context.Context, payload models.TurnUpdate) error
}

// rabbitMQPublisher implements ClientUpdatePublisher over a RabbitMQ channel.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
}

// NewRabbitMQClientUpdatePublisher opens a channel and declares the client
// updates queue. Declaring on the publisher side keeps startup order
// flexible: whichever side comes up first creates the queue.
func NewRabbitMQClientUpdatePublisher(conn *amqp.Connection, queueName string) (ClientUpdatePublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("client update publisher: failed to open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		log.Printf("ClientUpdatePublisher ERROR: failed to declare queue '%s': %v", queueName, err)
		ch.Close()
		return nil, fmt.Errorf("client update publisher: failed to declare queue '%s': %w", queueName, err)
	}
	log.Printf("ClientUpdatePublisher: queue '%s' declared.", queueName)
	return &rabbitMQPublisher{channel: ch, queueName: queueName}, nil
}

func (p *rabbitMQPublisher) PublishTurnUpdate(ctx context.Context, payload models.TurnUpdate) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal turn update: %w", err)
	}
	return p.publishMessage(ctx, body)
}

func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		return errors.New("RabbitMQ channel is not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (default)
			p.queueName, // routing key (queue name)
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "arena-server",
			},
		)
		if err == nil {
			break
		}
		log.Printf("Publish error (attempt %d) to queue '%s': %v", attempt, p.queueName, err)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("failed to publish to queue %s after retries: %w", p.queueName, err)
	}
	return nil
}
