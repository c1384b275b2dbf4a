package entities

// Tenant is an isolated customer account. The Identifier is the stable
// external code embedded in the MQTT topic (es. "T1"), the ID is the
// surrogate key in the directory database.
type Tenant struct {
	ID         int64  `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}
