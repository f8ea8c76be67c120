package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	kafkax "github.com/ariefcatur/go-realtime-parcels.git/internal/kafka"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/metrics"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/parcels"
	"github.com/ariefcatur/go-realtime-parcels.git/internal/replica"
	kafkago "github.com/segmentio/kafka-go"
)

// Deduper remembers processed event ids. *redisx.Deduper implements it.
type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Publisher puts a message on the change feed. *kafka.Producer implements it.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// Committer commits consumed feed offsets. *kafka.Consumer implements it.
type Committer interface {
	CommitOffsets(ctx context.Context, offsets map[int]int64) error
}

// Service keeps a replica in step with the parcel change feed and publishes changes
// made through this process.
type Service struct {
	Replica     *replica.Replica
	Dedup       Deduper // optional
	Producer    Publisher
	Metrics     *metrics.Registry
	ServiceName string

	mu      sync.Mutex
	pending []string // folded event ids not yet covered by a checkpoint
}

// HandleParcelChange: dipasang sebagai handler consumer.
// A malformed message is logged and acknowledged; retrying it cannot succeed.
func (s *Service) HandleParcelChange(ctx context.Context, m kafkago.Message) error {
	pos := replica.Position{Partition: m.Partition, Offset: m.Offset}

	// 1) decode + validasi envelope
	env, c, err := parcels.DecodeChange(m.Value)
	if err != nil {
		if s.Metrics != nil {
			s.Metrics.ChangesRejected.Inc()
		}
		log.Printf("syncer: drop %s/%d@%d: %v", m.Topic, m.Partition, m.Offset, err)
		s.Replica.Advance(pos)
		return nil
	}

	// 2) dedup via Redis (pakai event_id). Ids are only marked once a checkpoint holds
	// the fold, so a skipped event is never missing after a restart.
	if s.Dedup != nil && env.EventID != "" {
		seen, err := s.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			log.Printf("syncer: dedup lookup %s: %v", env.EventID, err)
		}
		if seen {
			s.Replica.Advance(pos)
			return nil
		}
	}

	// 3) fold
	s.Replica.ApplyAt(pos, c)

	if s.Dedup != nil && env.EventID != "" {
		s.mu.Lock()
		s.pending = append(s.pending, env.EventID)
		s.mu.Unlock()
	}
	return nil
}

// OnReadError and OnReadOK are meant for kafka.Consumer's hooks.
func (s *Service) OnReadError(err error) { s.Replica.SetTransportError(err) }

func (s *Service) OnReadOK() { s.Replica.ClearTransportError() }

// Publish sends c to the feed. The replica picks it up when it comes back around.
func (s *Service) Publish(c parcels.Change, traceID string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if s.Producer == nil {
		return errors.New("syncer: no producer")
	}
	env, err := parcels.NewEnvelope(c, s.ServiceName, traceID)
	if err != nil {
		return fmt.Errorf("encode change %s: %w", c.ID, err)
	}
	return s.Producer.Publish(parcels.PartitionKey(c.ID), kafkax.MustMarshal(env),
		kafkax.EventHeaders(env.EventType, env.EventVersion)...)
}

// Checkpoint saves the replica, then commits the feed offsets held by the saved
// snapshot, then marks the events folded before the save as processed. Offsets are
// never committed past what the checkpoint holds.
func (s *Service) Checkpoint(ctx context.Context, cp replica.Checkpoint, commit Committer) (*replica.Snapshot, error) {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	snap, err := s.Replica.SaveTo(cp)
	if err != nil {
		s.mu.Lock()
		s.pending = append(pending, s.pending...)
		s.mu.Unlock()
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}
	if commit != nil {
		if err := commit.CommitOffsets(ctx, snap.Offsets()); err != nil {
			return snap, fmt.Errorf("commit offsets: %w", err)
		}
	}
	if s.Dedup != nil {
		for _, id := range pending {
			if err := s.Dedup.Mark(ctx, id); err != nil {
				log.Printf("syncer: dedup mark %s: %v", id, err)
			}
		}
	}
	return snap, nil
}

// RunCheckpoints checkpoints every interval and once more when ctx ends.
func (s *Service) RunCheckpoints(ctx context.Context, cp replica.Checkpoint, commit Committer, every time.Duration) {
	if every <= 0 {
		every = 30 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()

	var saved uint64
	run := func(ctx context.Context) {
		if s.Replica.Snapshot().Version == saved {
			return
		}
		snap, err := s.Checkpoint(ctx, cp, commit)
		if err != nil {
			log.Printf("checkpoint: %v", err)
		}
		if snap != nil && err == nil {
			saved = snap.Version
		}
	}
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			run(final)
			cancel()
			return
		case <-t.C:
			run(ctx)
		}
	}
}
