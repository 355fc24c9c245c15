package agent

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_directory.go -package=mocks . Directory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/geo"
)

// Profile is what the core needs to know about an agent.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Verified  bool      `json:"verified"`
	Base      geo.Point `json:"base"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Directory is the source of agent profiles. Get returns nil, nil when unknown.
type Directory interface {
	Get(ctx context.Context, id uuid.UUID) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
}
