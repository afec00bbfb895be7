package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EmbedJob asks the embedding worker to generate vectors for the given
// document sections. Sections that already carry an embedding are skipped by
// the worker, so re-publishing a job is harmless.
type EmbedJob struct {
	DocumentID uint   `json:"document_id"`
	SectionIDs []uint `json:"section_ids"`
}

type EmbedJobPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewEmbedJobPublisher(conn *amqp.Connection, queueName string) *EmbedJobPublisher {
	return &EmbedJobPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *EmbedJobPublisher) Publish(ctx context.Context, job EmbedJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal embed job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish embed job failed: %w", err)
	}
	return nil
}
