package kafka

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the part of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       Reader
	topic   string
	workers int

	// DeferCommit leaves offset commits to CommitOffsets, for handlers whose effects
	// only become durable later (e.g. at a checkpoint).
	DeferCommit bool

	// OnReadError runs for every failed fetch, OnReadOK for the first good fetch after one.
	OnReadError func(error)
	OnReadOK    func()
	Backoff     time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
		StartOffset:    kafka.FirstOffset,
	})
	return NewConsumerFromReader(r, topic, workers)
}

func NewConsumerFromReader(r Reader, topic string, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, topic: topic, workers: workers, Backoff: 200 * time.Millisecond}
}

// Shard picks the worker for a partition. A partition always lands on one worker, so
// its messages are handled and committed in offset order.
func Shard(partition, workers int) int {
	if workers <= 1 || partition < 0 {
		return 0
	}
	return partition % workers
}

// CommitOffsets commits the given last-handled offset per partition.
func (c *Consumer) CommitOffsets(ctx context.Context, offsets map[int]int64) error {
	if len(offsets) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(offsets))
	for part, off := range offsets {
		msgs = append(msgs, kafka.Message{Topic: c.topic, Partition: part, Offset: off})
	}
	return c.r.CommitMessages(ctx, msgs...)
}

func (c *Consumer) Close() error { return c.r.Close() }

// Start blocks until ctx is done. Fetch errors do not stop the loop; they are
// reported through OnReadError and retried after Backoff. The reader stays open
// for CommitOffsets until Close.
func (c *Consumer) Start(ctx context.Context, h Handler) error {

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if err := h(ctx, m); err != nil {
					log.Printf("worker %d: handle %s/%d@%d: %v", id, m.Topic, m.Partition, m.Offset, err)
					continue
				}
				if c.DeferCommit {
					continue
				}
				// commit on success
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					log.Printf("worker %d: commit: %v", id, err)
				}
			}
		}(i, jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	failing := false
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				stop()
				return nil
			}
			failing = true
			if c.OnReadError != nil {
				c.OnReadError(err)
			}
			log.Printf("fetch: %v", err)
			select {
			case <-time.After(c.Backoff):
			case <-ctx.Done():
				stop()
				return nil
			}
			continue
		}
		if failing {
			failing = false
			if c.OnReadOK != nil {
				c.OnReadOK()
			}
		}
		select {
		case jobs[Shard(m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}
