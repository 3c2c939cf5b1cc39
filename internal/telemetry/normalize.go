// Package telemetry implements the realtime data path: the socket transport,
// the raw-to-internal field normalizer, the in-memory line store and the
// staleness watchdog.
package telemetry

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/line-kiosk/backend/internal/models"
)

// DefaultTrendDepth bounds the rolling trend window per line.
const DefaultTrendDepth = 20

// TrendTimeFormat is the human-readable timestamp attached to trend points.
const TrendTimeFormat = "15:04:05"

// Normalize converts a raw telemetry record into the fixed internal shape
// using the line's mapping table. Returns nil when the line has no complete
// mapping. Numeric fields default to 0 on missing or uncoercible values;
// status defaults to STOPPED. One trend point sampled from the line's trend
// source is appended to the prior record's window, bounded at trendDepth
// (drop-oldest). Never panics on any payload shape.
func Normalize(raw models.RawTelemetryMessage, line models.LineConfig, prior *models.NormalizedLineRecord, now time.Time, trendDepth int) *models.NormalizedLineRecord {
	if line.DataMapping == nil || !line.DataMapping.Complete() {
		return nil
	}
	if trendDepth <= 0 {
		trendDepth = DefaultTrendDepth
	}
	m := line.DataMapping

	payload, _ := raw.Payload.(map[string]any)

	rec := &models.NormalizedLineRecord{
		LineID:      line.ID,
		Status:      extractStatus(payload, m.StatusKey),
		Count:       extractNumber(payload, m.CountKey),
		Rate:        extractNumber(payload, m.RateKey),
		Temperature: extractNumber(payload, m.TemperatureKey),
		Reject:      extractNumber(payload, m.RejectKey),
		Efficiency:  extractNumber(payload, m.EfficiencyKey),
		LastUpdated: now.UnixMilli(),
	}

	point := models.TrendPoint{
		Time:  now.Format(TrendTimeFormat),
		Value: trendValue(rec, line.TrendSource),
	}

	var trend []models.TrendPoint
	if prior != nil {
		trend = append(trend, prior.Trend...)
	}
	trend = append(trend, point)
	if len(trend) > trendDepth {
		trend = trend[len(trend)-trendDepth:]
	}
	rec.Trend = trend

	return rec
}

// trendValue picks the sparkline sample for this record. Temperature is the
// default source.
func trendValue(rec *models.NormalizedLineRecord, source string) float64 {
	switch source {
	case models.TrendSourceCount:
		return rec.Count
	case models.TrendSourceRate:
		return rec.Rate
	case models.TrendSourceEfficiency:
		return rec.Efficiency
	default:
		return rec.Temperature
	}
}

// extractNumber reads a mapped payload field and coerces it to a finite
// float64, defaulting to 0.
func extractNumber(payload map[string]any, key string) float64 {
	if payload == nil {
		return 0
	}
	v, ok := payload[key]
	if !ok || v == nil {
		return 0
	}

	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case bool:
		if t {
			n = 1
		}
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	return n
}

// extractStatus reads the mapped status field. Unknown strings pass through
// upper-cased for forward compatibility; missing values default to STOPPED.
func extractStatus(payload map[string]any, key string) models.LineStatus {
	if payload == nil {
		return models.StatusStopped
	}
	v, ok := payload[key]
	if !ok || v == nil {
		return models.StatusStopped
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return models.StatusStopped
	}
	return strings.ToUpper(strings.TrimSpace(s))
}
