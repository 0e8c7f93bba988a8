package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
)

type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, log: log}
}

// run reads messages until the context ends, handing raw payloads to
// unmarshal-and-dispatch callbacks below.
func (c *Consumer) run(ctx context.Context, handle func([]byte)) {
	c.log.LogKafka("START", c.reader.Config().Topic, "consumer loop running")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.LogKafka("ERROR", c.reader.Config().Topic, err.Error())
			continue
		}
		handle(msg.Value)
	}
}

// StartChatMessages consumes inbound chat messages.
func (c *Consumer) StartChatMessages(ctx context.Context, handler func(models.ChatMessage)) {
	c.run(ctx, func(value []byte) {
		var msg models.ChatMessage
		if err := json.Unmarshal(value, &msg); err != nil {
			c.log.LogKafka("SKIP", c.reader.Config().Topic, "malformed chat message: "+err.Error())
			return
		}
		handler(msg)
	})
}

// StartDonationEvents consumes donation events.
func (c *Consumer) StartDonationEvents(ctx context.Context, handler func(models.DonationEvent)) {
	c.run(ctx, func(value []byte) {
		var event models.DonationEvent
		if err := json.Unmarshal(value, &event); err != nil {
			c.log.LogKafka("SKIP", c.reader.Config().Topic, "malformed donation event: "+err.Error())
			return
		}
		handler(event)
	})
}

// StartWorkerCommands consumes the worker command union.
func (c *Consumer) StartWorkerCommands(ctx context.Context, handler func(models.WorkerCommand)) {
	c.run(ctx, func(value []byte) {
		var cmd models.WorkerCommand
		if err := json.Unmarshal(value, &cmd); err != nil {
			c.log.LogKafka("SKIP", c.reader.Config().Topic, "malformed worker command: "+err.Error())
			return
		}
		handler(cmd)
	})
}

// StartChatReplies consumes outbound replies on the worker side.
func (c *Consumer) StartChatReplies(ctx context.Context, handler func(models.ChatReply)) {
	c.run(ctx, func(value []byte) {
		var reply models.ChatReply
		if err := json.Unmarshal(value, &reply); err != nil {
			c.log.LogKafka("SKIP", c.reader.Config().Topic, "malformed chat reply: "+err.Error())
			return
		}
		handler(reply)
	})
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
