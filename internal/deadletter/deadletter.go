// Package deadletter retains records rejected by validation for inspection.
// Rejected records are never silently dropped.
package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rgoswami/findata/internal/model"
)

// Rejection is one rejected record with its reason and raw payload.
type Rejection struct {
	ID         uuid.UUID
	Domain     model.Domain
	Key        string
	Reason     string
	Detail     string
	Payload    []byte // JSON snapshot of the rejected record
	RejectedAt time.Time
}

// Sink receives rejections.
type Sink interface {
	Record(ctx context.Context, rejections []Rejection) error
}

// New builds a Rejection from a record, serializing it for inspection.
func New(rec model.Record, reason, detail string) Rejection {
	payload, err := json.Marshal(rec)
	if err != nil {
		// NaN payload fields are not representable in JSON; keep the key.
		payload = []byte(fmt.Sprintf(`{"domain":%q,"key":%q}`, rec.Domain, rec.Key()))
	}
	return Rejection{
		ID:         uuid.New(),
		Domain:     rec.Domain,
		Key:        rec.Key(),
		Reason:     reason,
		Detail:     detail,
		Payload:    payload,
		RejectedAt: time.Now().UTC(),
	}
}
