package messages

// GreenhouseMessage holds the full decoded payload for one timestamp. Every
// numeric field is optional: the inbound JSON rarely carries all channels at
// once, and a nil pointer keeps "absent" distinct from zero.
// This is the unit stored in the recent-message cache and broadcast to the
// live subscribers.
type GreenhouseMessage struct {
	TenantID     string `json:"tenant_id"`
	GreenhouseID string `json:"greenhouse_id"`
	// Timestamp is epoch milliseconds; it doubles as the cache score.
	Timestamp int64 `json:"timestamp"`

	Sensor01 *float64 `json:"sensor01,omitempty"`
	Sensor02 *float64 `json:"sensor02,omitempty"`
	Sensor03 *float64 `json:"sensor03,omitempty"`
	Sensor04 *float64 `json:"sensor04,omitempty"`

	Setpoint01 *float64 `json:"setpoint01,omitempty"`
	Setpoint02 *float64 `json:"setpoint02,omitempty"`
	Setpoint03 *float64 `json:"setpoint03,omitempty"`
	Setpoint04 *float64 `json:"setpoint04,omitempty"`

	Temperature01 *float64 `json:"temperature01,omitempty"`
	Temperature02 *float64 `json:"temperature02,omitempty"`

	Humidity01 *float64 `json:"humidity01,omitempty"`
	Humidity02 *float64 `json:"humidity02,omitempty"`

	Sector01 *float64 `json:"sector01,omitempty"`
	Sector02 *float64 `json:"sector02,omitempty"`
	Sector03 *float64 `json:"sector03,omitempty"`
	Sector04 *float64 `json:"sector04,omitempty"`
	Sector05 *float64 `json:"sector05,omitempty"`
	Sector06 *float64 `json:"sector06,omitempty"`

	Extractor01 *float64 `json:"extractor01,omitempty"`
	Extractor02 *float64 `json:"extractor02,omitempty"`
	Extractor03 *float64 `json:"extractor03,omitempty"`
	Extractor04 *float64 `json:"extractor04,omitempty"`

	Reserve *float64 `json:"reserve,omitempty"`
}
