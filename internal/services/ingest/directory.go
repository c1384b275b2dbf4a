package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	ents "github.com/LeonardoBeccarini/greenhouse_pipeline/internal/model/entities"
)

// Directory is the tenant/greenhouse lookup surface the pipeline depends on.
// A nil tenant with nil error means "not found".
type Directory interface {
	FindTenantByIdentifier(ctx context.Context, code string) (*ents.Tenant, error)
	FindActiveGreenhouses(ctx context.Context, tenantID int64) ([]ents.Greenhouse, error)
	SaveGreenhouse(ctx context.Context, g *ents.Greenhouse) error
}

// PostgresDirectory implements Directory against the catalog database. Only
// the three queries the pipeline needs live here; the catalog CRUD is owned
// by another service.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(ctx context.Context, url string) (*PostgresDirectory, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("directory config: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("directory unreachable: %w", err)
	}
	return &PostgresDirectory{pool: pool}, nil
}

func (d *PostgresDirectory) Close() {
	d.pool.Close()
}

func (d *PostgresDirectory) FindTenantByIdentifier(ctx context.Context, code string) (*ents.Tenant, error) {
	const q = `SELECT id, identifier, name FROM tenants WHERE identifier = $1`

	var t ents.Tenant
	err := d.pool.QueryRow(ctx, q, code).Scan(&t.ID, &t.Identifier, &t.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tenant lookup %q: %w", code, err)
	}
	return &t, nil
}

func (d *PostgresDirectory) FindActiveGreenhouses(ctx context.Context, tenantID int64) ([]ents.Greenhouse, error) {
	const q = `SELECT id, tenant_id, name, active, last_activity
	           FROM greenhouses WHERE tenant_id = $1 AND active ORDER BY id`

	rows, err := d.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("greenhouse lookup tenant=%d: %w", tenantID, err)
	}
	defer rows.Close()

	var out []ents.Greenhouse
	for rows.Next() {
		var g ents.Greenhouse
		if err := rows.Scan(&g.ID, &g.TenantID, &g.Name, &g.Active, &g.LastActivity); err != nil {
			return nil, fmt.Errorf("greenhouse scan: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (d *PostgresDirectory) SaveGreenhouse(ctx context.Context, g *ents.Greenhouse) error {
	const q = `UPDATE greenhouses SET last_activity = $2 WHERE id = $1`

	if _, err := d.pool.Exec(ctx, q, g.ID, g.LastActivity); err != nil {
		return fmt.Errorf("greenhouse save id=%d: %w", g.ID, err)
	}
	return nil
}
