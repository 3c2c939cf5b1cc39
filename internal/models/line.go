package models

// LineStatus is the canonical set of production line states. Raw feeds may
// carry other strings; those pass through verbatim for forward compatibility.
type LineStatus = string

const (
	StatusRunning     LineStatus = "RUNNING"
	StatusStopped     LineStatus = "STOPPED"
	StatusAlarm       LineStatus = "ALARM"
	StatusMaintenance LineStatus = "MAINTENANCE"
)

// DataMapping names which raw-payload fields carry each semantic role for a
// line. All six keys must be non-empty for normalization to run.
type DataMapping struct {
	CountKey       string `json:"countKey" yaml:"countKey"`
	RateKey        string `json:"rateKey" yaml:"rateKey"`
	TemperatureKey string `json:"temperatureKey" yaml:"temperatureKey"`
	RejectKey      string `json:"rejectKey" yaml:"rejectKey"`
	StatusKey      string `json:"statusKey" yaml:"statusKey"`
	EfficiencyKey  string `json:"efficiencyKey" yaml:"efficiencyKey"`
}

// Complete reports whether every key is set.
func (m DataMapping) Complete() bool {
	return m.CountKey != "" && m.RateKey != "" && m.TemperatureKey != "" &&
		m.RejectKey != "" && m.StatusKey != "" && m.EfficiencyKey != ""
}

// Trend source roles. A line's sparkline samples one of the four numeric
// metrics; temperature is the default.
const (
	TrendSourceTemperature = "temperature"
	TrendSourceCount       = "count"
	TrendSourceRate        = "rate"
	TrendSourceEfficiency  = "efficiency"
)

// LineConfig is the user-editable configuration for one production asset:
// identity, display metadata, field mapping and on-screen geometry.
type LineConfig struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Topic       string       `json:"topic,omitempty"` // alternate resolution key for brokers that publish by topic
	Unit        string       `json:"unit,omitempty"`
	TimeBasis   string       `json:"timeBasis,omitempty"` // e.g. "per hour", "per shift"
	TrendSource string       `json:"trendSource,omitempty"`
	DataMapping *DataMapping `json:"dataMapping,omitempty"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	W           float64      `json:"w"`
	H           float64      `json:"h"`
}

// LineConfigPatch carries a partial update for a line. Nil fields are left
// untouched by the merge.
type LineConfigPatch struct {
	Name        *string      `json:"name,omitempty"`
	Topic       *string      `json:"topic,omitempty"`
	Unit        *string      `json:"unit,omitempty"`
	TimeBasis   *string      `json:"timeBasis,omitempty"`
	TrendSource *string      `json:"trendSource,omitempty"`
	DataMapping *DataMapping `json:"dataMapping,omitempty"`
	X           *float64     `json:"x,omitempty"`
	Y           *float64     `json:"y,omitempty"`
	W           *float64     `json:"w,omitempty"`
	H           *float64     `json:"h,omitempty"`
}

// TrendPoint is one sample in a line's rolling trend window.
type TrendPoint struct {
	Time  string  `json:"time" msgpack:"time"`
	Value float64 `json:"value" msgpack:"value"`
}

// NormalizedLineRecord is the fixed internal shape a raw telemetry record is
// mapped into. Rebuilt wholesale on every message; only the trend window
// accumulates across messages.
type NormalizedLineRecord struct {
	LineID      string       `json:"lineId" msgpack:"lineId"`
	Status      LineStatus   `json:"status" msgpack:"status"`
	Count       float64      `json:"count" msgpack:"count"`
	Rate        float64      `json:"rate" msgpack:"rate"`
	Temperature float64      `json:"temperature" msgpack:"temperature"`
	Reject      float64      `json:"reject" msgpack:"reject"`
	Efficiency  float64      `json:"efficiency" msgpack:"efficiency"`
	LastUpdated int64        `json:"lastUpdated" msgpack:"lastUpdated"` // Unix ms
	Trend       []TrendPoint `json:"trend" msgpack:"trend"`
}
