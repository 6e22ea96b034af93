package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Registry entities. The booking core only consults them for existence and
// the company timezone; their CRUD lives outside this service.

type Company struct {
	bun.BaseModel `bun:"table:companies"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Name      string    `bun:"name,notnull"`
	Timezone  string    `bun:"timezone,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type Client struct {
	bun.BaseModel `bun:"table:clients"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	CompanyID uuid.UUID `bun:"company_id,notnull,type:uuid"`
	Name      string    `bun:"name,notnull"`
	Phone     string    `bun:"phone"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID              uuid.UUID `bun:"id,pk,type:uuid"`
	CompanyID       uuid.UUID `bun:"company_id,notnull,type:uuid"`
	Name            string    `bun:"name,notnull"`
	DurationMinutes int       `bun:"duration_minutes,notnull"`
	PriceCents      int64     `bun:"price_cents,notnull"`
	CreatedAt       time.Time `bun:"created_at,notnull"`
}

type Staff struct {
	bun.BaseModel `bun:"table:staff"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	CompanyID uuid.UUID `bun:"company_id,notnull,type:uuid"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
