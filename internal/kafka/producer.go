package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-songrequest/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

func (p *Producer) publish(key string, payload interface{}) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

// PublishChatMessage relays an inbound live chat message from the worker
// to the request service.
func (p *Producer) PublishChatMessage(msg models.ChatMessage) error {
	if err := p.publish(msg.SenderID, msg); err != nil {
		return fmt.Errorf("publish chat message: %w", err)
	}
	return nil
}

// PublishChatReply streams an outbound chat message to the chat transport.
func (p *Producer) PublishChatReply(reply models.ChatReply) error {
	if err := p.publish(reply.LiveID, reply); err != nil {
		return fmt.Errorf("publish chat reply: %w", err)
	}
	return nil
}

// PublishWorkerCommand streams a command to the chat worker process.
func (p *Producer) PublishWorkerCommand(cmd models.WorkerCommand) error {
	if err := p.publish(string(cmd.Type), cmd); err != nil {
		return fmt.Errorf("publish worker command: %w", err)
	}
	return nil
}

// PublishDonationEvent streams a donation event; used by the Stripe
// webhook to feed card donations through the same router as platform
// stickers.
func (p *Producer) PublishDonationEvent(event models.DonationEvent) error {
	if err := p.publish(event.DonorID, event); err != nil {
		return fmt.Errorf("publish donation event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.Writer.Close()
}
