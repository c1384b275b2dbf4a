package messages

// ReadingCategory classifies one telemetry channel by its key name.
type ReadingCategory string

const (
	CategorySensor      ReadingCategory = "SENSOR"
	CategorySetpoint    ReadingCategory = "SETPOINT"
	CategoryTemperature ReadingCategory = "TEMPERATURE"
	CategoryHumidity    ReadingCategory = "HUMIDITY"
	CategorySector      ReadingCategory = "SECTOR"
	CategoryExtractor   ReadingCategory = "EXTRACTOR"
	CategoryUnknown     ReadingCategory = "UNKNOWN"
)

// Reading is one decoded field of a payload: the raw sensor key, its numeric
// value and the inferred category/unit. Readings are ephemeral, built per
// message and consumed by the throttle and the durable writer.
type Reading struct {
	Key      string          `json:"key"`
	Value    float64         `json:"value"`
	Category ReadingCategory `json:"category"`
	Unit     string          `json:"unit,omitempty"`
}
