package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Registry exposes the existence checks the booking core needs from the
// client/service/staff registries. Business attributes beyond existence are
// owned elsewhere.
type Registry interface {
	CompanyLocation(ctx context.Context, companyID uuid.UUID) (*time.Location, error)
	ClientExists(ctx context.Context, companyID, clientID uuid.UUID) (bool, error)
	ServiceExists(ctx context.Context, companyID, serviceID uuid.UUID) (bool, error)
	StaffExists(ctx context.Context, companyID, staffID uuid.UUID) (bool, error)
}
