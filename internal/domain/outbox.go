package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type MirrorOp string

const (
	MirrorOpCreate MirrorOp = "create"
	MirrorOpUpdate MirrorOp = "update"
	MirrorOpDelete MirrorOp = "delete"
)

// MirrorEntry is one pending propagation of a local appointment change to the
// external calendar. Entries are written in the same transaction as the local
// change and drained by the mirror worker, so a failed remote call is retried
// instead of silently dropped.
type MirrorEntry struct {
	bun.BaseModel `bun:"table:calendar_outbox"`

	ID              int64      `bun:"id,pk,autoincrement"`
	AppointmentID   uuid.UUID  `bun:"appointment_id,notnull,type:uuid"`
	CompanyID       uuid.UUID  `bun:"company_id,notnull,type:uuid"`
	StaffID         uuid.UUID  `bun:"staff_id,notnull,type:uuid"`
	Op              MirrorOp   `bun:"op,notnull"`
	Payload         []byte     `bun:"payload"`
	ExternalEventID string     `bun:"external_event_id"`
	Attempts        int        `bun:"attempts,notnull"`
	NextAttemptAt   time.Time  `bun:"next_attempt_at,notnull"`
	DoneAt          *time.Time `bun:"done_at"`
	LastError       string     `bun:"last_error"`
	CreatedAt       time.Time  `bun:"created_at,notnull"`
}
