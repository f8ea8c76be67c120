package parcels

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	EventParcelUpserted = "ParcelUpserted"
	EventParcelDeleted  = "ParcelDeleted"
)

var ErrInvalidChange = errors.New("invalid parcel change")

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // parcel id
	Payload       json.RawMessage `json:"payload"`
}

type ChangeOp string

const (
	OpUpsert ChangeOp = "upsert"
	OpDelete ChangeOp = "delete"
)

// Change is one row-level entry of the parcel change feed.
// Seq grows per parcel id; a replica skips anything it has already seen.
type Change struct {
	Op     ChangeOp `json:"op"`
	ID     string   `json:"id"`
	Seq    int64    `json:"seq"`
	Parcel *Parcel  `json:"parcel,omitempty"`
}

func UpsertChange(p Parcel) Change {
	return Change{Op: OpUpsert, ID: p.ID, Seq: p.Version, Parcel: &p}
}

func DeleteChange(id string, seq int64) Change {
	return Change{Op: OpDelete, ID: id, Seq: seq}
}

func (c Change) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidChange)
	}
	switch c.Op {
	case OpUpsert:
		if c.Parcel == nil {
			return fmt.Errorf("%w: upsert %s without parcel", ErrInvalidChange, c.ID)
		}
		if c.Parcel.ID != c.ID {
			return fmt.Errorf("%w: parcel id %q does not match change id %q", ErrInvalidChange, c.Parcel.ID, c.ID)
		}
		if !c.Parcel.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidChange, c.Parcel.Status)
		}
		if c.Parcel.Weight < 0 {
			return fmt.Errorf("%w: negative weight", ErrInvalidChange)
		}
	case OpDelete:
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidChange, c.Op)
	}
	return nil
}

func (c Change) EventType() string {
	if c.Op == OpDelete {
		return EventParcelDeleted
	}
	return EventParcelUpserted
}

// NewEnvelope wraps a change for the feed under a fresh event id.
func NewEnvelope(c Change, producer, traceID string) (Envelope, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     c.EventType(),
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: c.ID,
		Payload:       payload,
	}, nil
}

// DecodeChange unwraps an envelope from the feed and validates its payload.
func DecodeChange(b []byte) (Envelope, Change, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, Change{}, fmt.Errorf("%w: decode envelope: %v", ErrInvalidChange, err)
	}
	if env.EventType != EventParcelUpserted && env.EventType != EventParcelDeleted {
		return env, Change{}, fmt.Errorf("%w: unexpected event type %q", ErrInvalidChange, env.EventType)
	}
	var c Change
	if err := json.Unmarshal(env.Payload, &c); err != nil {
		return env, Change{}, fmt.Errorf("%w: decode payload: %v", ErrInvalidChange, err)
	}
	if err := c.Validate(); err != nil {
		return env, Change{}, err
	}
	return env, c, nil
}
