package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

var (
	// ErrTenantNotFound: the topic-embedded identifier matches no tenant.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrNoActiveGreenhouse: the tenant exists but has no active greenhouse.
	ErrNoActiveGreenhouse = errors.New("no active greenhouse for tenant")
)

// TenantContext is the resolved routing for one inbound message. It is
// rebuilt per message and never cached: a greenhouse's active flag can flip
// between two deliveries.
type TenantContext struct {
	TenantCode   string
	TenantID     int64
	GreenhouseID int64
}

// Resolver maps a topic-embedded tenant identifier to its tenant record and
// single active greenhouse.
type Resolver struct {
	dir Directory
}

func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Resolve fails fast with ErrTenantNotFound / ErrNoActiveGreenhouse, both
// fatal for the message being processed. On success it touches the
// greenhouse's last-activity timestamp; a failed touch is logged and
// swallowed, never failing the ingestion itself.
func (r *Resolver) Resolve(ctx context.Context, tenantCode string) (TenantContext, error) {
	tenant, err := r.dir.FindTenantByIdentifier(ctx, tenantCode)
	if err != nil {
		return TenantContext{}, fmt.Errorf("resolve %q: %w", tenantCode, err)
	}
	if tenant == nil {
		return TenantContext{}, fmt.Errorf("resolve %q: %w", tenantCode, ErrTenantNotFound)
	}

	greenhouses, err := r.dir.FindActiveGreenhouses(ctx, tenant.ID)
	if err != nil {
		return TenantContext{}, fmt.Errorf("resolve %q: %w", tenantCode, err)
	}
	if len(greenhouses) == 0 {
		return TenantContext{}, fmt.Errorf("resolve %q: %w", tenantCode, ErrNoActiveGreenhouse)
	}
	gh := greenhouses[0]

	gh.LastActivity = time.Now().UTC()
	if err := r.dir.SaveGreenhouse(ctx, &gh); err != nil {
		log.Printf("resolver: activity touch failed for greenhouse %d: %v", gh.ID, err)
	}

	return TenantContext{
		TenantCode:   tenant.Identifier,
		TenantID:     tenant.ID,
		GreenhouseID: gh.ID,
	}, nil
}
