package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"toolsmith/internal/ai"
	"toolsmith/internal/platform/rabbitmq"
	"toolsmith/internal/repository"
)

// EmbedWorker consumes embed jobs and fills in the embeddings of document
// sections that are still pending. Sections that already have a vector are
// skipped, so redelivered jobs are safe.
type EmbedWorker struct {
	conn        *amqp.Connection
	sectionRepo *repository.SectionRepository
	embedder    *ai.EmbeddingClient
	queueName   string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEmbedWorker(conn *amqp.Connection, sectionRepo *repository.SectionRepository, embedder *ai.EmbeddingClient, queueName string) *EmbedWorker {
	return &EmbedWorker{
		conn:        conn,
		sectionRepo: sectionRepo,
		embedder:    embedder,
		queueName:   queueName,
	}
}

func (w *EmbedWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var job rabbitmq.EmbedJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					log.Printf("worker decode embed job failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.processJob(workerCtx, job); err != nil {
					log.Printf("worker embed document %d failed: %v", job.DocumentID, err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *EmbedWorker) processJob(ctx context.Context, job rabbitmq.EmbedJob) error {
	pending, err := w.sectionRepo.ListPendingByIDs(ctx, job.SectionIDs)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	inputs := make([]string, len(pending))
	for i, section := range pending {
		inputs[i] = section.Content
	}

	vectors, err := w.embedder.EmbedBatch(ctx, inputs)
	if err != nil {
		return err
	}
	if len(vectors) != len(pending) {
		return fmt.Errorf("embedding count mismatch: got %d for %d sections", len(vectors), len(pending))
	}

	for i, section := range pending {
		encoded, err := json.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("encode embedding failed: %w", err)
		}
		if err := w.sectionRepo.UpdateEmbedding(ctx, section.ID, string(encoded)); err != nil {
			return err
		}
	}
	return nil
}

func (w *EmbedWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
