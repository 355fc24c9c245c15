package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/estate-hub/estate-hub/internal/domain/agent"
)

// AgentRepository implements agent.Directory from the agents table, which an
// admin keeps in sync with the agent onboarding system.
type AgentRepository struct {
	q querier
}

func (r *AgentRepository) Get(ctx context.Context, id uuid.UUID) (*agent.Profile, error) {
	var p agent.Profile
	err := r.q.QueryRow(ctx, `SELECT id, name, verified, base_lat, base_lng, updated_at FROM agents WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Verified, &p.Base.Lat, &p.Base.Lng, &p.UpdatedAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *AgentRepository) Save(ctx context.Context, p *agent.Profile) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO agents (id, name, verified, base_lat, base_lng, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, verified=EXCLUDED.verified,
			base_lat=EXCLUDED.base_lat, base_lng=EXCLUDED.base_lng, updated_at=EXCLUDED.updated_at
	`, p.ID, p.Name, p.Verified, p.Base.Lat, p.Base.Lng, p.UpdatedAt)
	return err
}
