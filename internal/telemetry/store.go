package telemetry

import (
	"sync"
	"time"

	"github.com/line-kiosk/backend/internal/models"
)

// Connection status values stored verbatim for UI consumers.
const (
	StatusConnected    = "CONNECTED"
	StatusDisconnected = "DISCONNECTED"
	StatusError        = "ERROR"
)

// DefaultErrorClear is how long an error signal stays visible before it is
// cleared automatically.
const DefaultErrorClear = 10 * time.Second

// Store holds the authoritative in-memory map of line id to the latest
// normalized record. It has one writer (the ingest reducer) and many
// readers. A batch is applied atomically: readers never observe a
// partially-applied batch, and a batch that updates zero lines does not bump
// the published version.
type Store struct {
	mu            sync.RWMutex
	records       map[string]*models.NormalizedLineRecord
	connStatus    string
	lastError     string
	lastHeartbeat time.Time
	version       uint64

	depth      int
	errorClear time.Duration
	errorTimer *time.Timer
	clock      func() time.Time
}

// NewStore creates a telemetry store with the given trend depth and error
// auto-clear duration. Zero values fall back to the defaults.
func NewStore(trendDepth int, errorClear time.Duration) *Store {
	if trendDepth <= 0 {
		trendDepth = DefaultTrendDepth
	}
	if errorClear <= 0 {
		errorClear = DefaultErrorClear
	}
	return &Store{
		records:    make(map[string]*models.NormalizedLineRecord),
		connStatus: StatusDisconnected,
		depth:      trendDepth,
		errorClear: errorClear,
		clock:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// ApplyBatch resolves each raw message to a line (id before topic),
// normalizes it and merges the results into the map in one atomic step.
// Messages matching no known line are silently dropped. Returns the number
// of lines updated; the heartbeat is bumped only when that number is
// positive.
func (s *Store) ApplyBatch(batch []models.RawTelemetryMessage, lines []models.LineConfig) int {
	if len(batch) == 0 {
		return 0
	}

	doc := models.LayoutDocument{Lines: lines}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	updates := make(map[string]*models.NormalizedLineRecord)
	for _, raw := range batch {
		line := doc.ResolveLine(raw.ID, raw.Topic)
		if line == nil {
			continue
		}
		prior := s.records[line.ID]
		if prev, ok := updates[line.ID]; ok {
			prior = prev
		}
		rec := Normalize(raw, *line, prior, now, s.depth)
		if rec == nil {
			continue
		}
		updates[line.ID] = rec
	}

	if len(updates) == 0 {
		return 0
	}

	for id, rec := range updates {
		s.records[id] = rec
	}
	s.lastHeartbeat = now
	s.version++
	return len(updates)
}

// SetConnectionStatus stores a transport status transition verbatim.
func (s *Store) SetConnectionStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connStatus == status {
		return
	}
	s.connStatus = status
	s.version++
}

// SetError stores an error signal and arms a timer that clears it after the
// configured interval.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
	s.version++
	if s.errorTimer != nil {
		s.errorTimer.Stop()
	}
	s.errorTimer = time.AfterFunc(s.errorClear, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.lastError == msg {
			s.lastError = ""
			s.version++
		}
	})
}

// Record returns a copy of the latest record for a line, if any.
func (s *Store) Record(lineID string) (models.NormalizedLineRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[lineID]
	if !ok {
		return models.NormalizedLineRecord{}, false
	}
	return copyRecord(rec), true
}

// Snapshot returns a copy of the whole line map.
func (s *Store) Snapshot() map[string]models.NormalizedLineRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.NormalizedLineRecord, len(s.records))
	for id, rec := range s.records {
		out[id] = copyRecord(rec)
	}
	return out
}

// ConnectionStatus returns the last stored transport status.
func (s *Store) ConnectionStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connStatus
}

// LastError returns the current error signal, empty once auto-cleared.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// LastHeartbeat returns the time of the last effective batch. Zero before
// any message has ever updated a line.
func (s *Store) LastHeartbeat() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastHeartbeat
}

// Version increments on every observable change. Consumers compare versions
// to skip redundant re-renders.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Close stops the error auto-clear timer.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errorTimer != nil {
		s.errorTimer.Stop()
		s.errorTimer = nil
	}
}

func copyRecord(rec *models.NormalizedLineRecord) models.NormalizedLineRecord {
	out := *rec
	out.Trend = append([]models.TrendPoint(nil), rec.Trend...)
	return out
}
