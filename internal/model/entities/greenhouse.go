package entities

import "time"

// Greenhouse is a physical site with sensors and actuators, belonging to
// exactly one tenant. Only one greenhouse per tenant is "active" at a time
// for ingestion routing.
type Greenhouse struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenant_id"`
	Name         string    `json:"name"`
	Active       bool      `json:"active"`
	LastActivity time.Time `json:"last_activity"`
}
