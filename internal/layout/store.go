// Package layout implements the client side of layout collaboration: the
// local document replica, the edit-lock state machine and the sync client
// that speaks to the lock broker.
package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/line-kiosk/backend/internal/models"
)

// ErrNotEditing is returned by local mutations attempted outside a held
// edit lock.
var ErrNotEditing = errors.New("layout: document is read-only without the edit lock")

// ErrLineExists is returned when adding a line whose id is already taken.
var ErrLineExists = errors.New("layout: line id already exists")

// ErrLineNotFound is returned when patching or removing an unknown line.
var ErrLineNotFound = errors.New("layout: line not found")

// DocumentStore holds the locally visible LayoutDocument. A full-state sync
// replaces top-level sections wholesale but merges the nested header and
// logoWidget substructures one level deep, so a partial broadcast that omits
// unrelated header fields does not erase them. Local mutations are gated by
// the edit-lock state machine.
type DocumentStore struct {
	mu      sync.RWMutex
	doc     models.LayoutDocument
	canEdit func() bool
}

// NewDocumentStore creates an empty document store. Without an edit gate all
// local mutations are allowed (server-side and test use).
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{}
}

// SetEditGate installs the predicate consulted before any local mutation.
func (s *DocumentStore) SetEditGate(gate func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canEdit = gate
}

// Document returns a deep-enough copy of the current replica for readers.
func (s *DocumentStore) Document() models.LayoutDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyDocument(s.doc)
}

// Lines returns a copy of the line config list.
func (s *DocumentStore) Lines() []models.LineConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.LineConfig(nil), s.doc.Lines...)
}

// ApplyFullSync replaces the replica from a broadcast or initial-fetch
// payload. Sections present in the payload replace local state wholesale;
// the header and logoWidget sections merge one level deep: keys present in
// the payload override, keys absent keep their local values.
func (s *DocumentStore) ApplyFullSync(raw json.RawMessage) error {
	var incoming models.LayoutDocument
	if err := json.Unmarshal(raw, &incoming); err != nil {
		return fmt.Errorf("decoding layout document: %w", err)
	}

	// Which top-level sections and which nested keys the payload actually
	// carried, so omitted keys can be preserved.
	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return fmt.Errorf("decoding layout sections: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	local := s.doc
	next := incoming

	// Sections absent from the payload keep their local values; sections
	// present replace wholesale.
	if _, ok := sections["windows"]; !ok {
		next.Windows = local.Windows
	}
	if _, ok := sections["ticker"]; !ok {
		next.Ticker = local.Ticker
	}
	if _, ok := sections["party"]; !ok {
		next.Party = local.Party
	}
	if _, ok := sections["lines"]; !ok {
		next.Lines = local.Lines
	}
	if _, ok := sections["playlists"]; !ok {
		next.Playlists = local.Playlists
	}

	if headerRaw, ok := sections["header"]; ok {
		if err := mergeOneLevel(local.Header, headerRaw, &next.Header); err != nil {
			return err
		}
	} else {
		next.Header = local.Header
	}

	if logoRaw, ok := sections["logoWidget"]; ok {
		if err := mergeOneLevel(local.LogoWidget, logoRaw, &next.LogoWidget); err != nil {
			return err
		}
	} else {
		next.LogoWidget = local.LogoWidget
	}

	s.doc = next
	return nil
}

// mergeOneLevel overlays the keys present in incoming onto the local value,
// exactly one level deep, and decodes the result into out.
func mergeOneLevel(local any, incoming json.RawMessage, out any) error {
	localJSON, err := json.Marshal(local)
	if err != nil {
		return fmt.Errorf("encoding local section: %w", err)
	}
	base := make(map[string]json.RawMessage)
	if err := json.Unmarshal(localJSON, &base); err != nil {
		return fmt.Errorf("decoding local section: %w", err)
	}
	overlay := make(map[string]json.RawMessage)
	if err := json.Unmarshal(incoming, &overlay); err != nil {
		return fmt.Errorf("decoding incoming section: %w", err)
	}
	for k, v := range overlay {
		base[k] = v
	}
	mergedJSON, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("encoding merged section: %w", err)
	}
	if err := json.Unmarshal(mergedJSON, out); err != nil {
		return fmt.Errorf("decoding merged section: %w", err)
	}
	return nil
}

func (s *DocumentStore) editable() bool {
	return s.canEdit == nil || s.canEdit()
}

// AddLine appends a new line config. Fails if the id is already taken.
func (s *DocumentStore) AddLine(line models.LineConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editable() {
		return ErrNotEditing
	}
	if s.doc.Line(line.ID) != nil {
		return ErrLineExists
	}
	s.doc.Lines = append(s.doc.Lines, line)
	return nil
}

// PatchLine merges a partial update into an existing line. Nil patch fields
// leave the current values untouched.
func (s *DocumentStore) PatchLine(id string, patch models.LineConfigPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editable() {
		return ErrNotEditing
	}
	line := s.doc.Line(id)
	if line == nil {
		return ErrLineNotFound
	}
	if patch.Name != nil {
		line.Name = *patch.Name
	}
	if patch.Topic != nil {
		line.Topic = *patch.Topic
	}
	if patch.Unit != nil {
		line.Unit = *patch.Unit
	}
	if patch.TimeBasis != nil {
		line.TimeBasis = *patch.TimeBasis
	}
	if patch.TrendSource != nil {
		line.TrendSource = *patch.TrendSource
	}
	if patch.DataMapping != nil {
		mapping := *patch.DataMapping
		line.DataMapping = &mapping
	}
	if patch.X != nil {
		line.X = *patch.X
	}
	if patch.Y != nil {
		line.Y = *patch.Y
	}
	if patch.W != nil {
		line.W = *patch.W
	}
	if patch.H != nil {
		line.H = *patch.H
	}
	return nil
}

// RemoveLine deletes a line config by id. Any telemetry store entry keyed by
// that id is deliberately left alone; it simply stops updating.
func (s *DocumentStore) RemoveLine(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editable() {
		return ErrNotEditing
	}
	for i := range s.doc.Lines {
		if s.doc.Lines[i].ID == id {
			s.doc.Lines = append(s.doc.Lines[:i], s.doc.Lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

// SetHeader replaces the header section locally.
func (s *DocumentStore) SetHeader(h models.HeaderSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editable() {
		return ErrNotEditing
	}
	s.doc.Header = h
	return nil
}

// SetLogoWidget replaces the logo widget section locally.
func (s *DocumentStore) SetLogoWidget(w models.LogoWidget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editable() {
		return ErrNotEditing
	}
	s.doc.LogoWidget = w
	return nil
}

// SetWindows replaces the floating window list locally.
func (s *DocumentStore) SetWindows(windows []models.WindowGeometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editable() {
		return ErrNotEditing
	}
	s.doc.Windows = append([]models.WindowGeometry(nil), windows...)
	return nil
}

// SetTicker replaces the ticker section locally.
func (s *DocumentStore) SetTicker(t models.TickerSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editable() {
		return ErrNotEditing
	}
	s.doc.Ticker = t
	return nil
}

// SetParty replaces the party-mode section locally.
func (s *DocumentStore) SetParty(p models.PartySettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editable() {
		return ErrNotEditing
	}
	s.doc.Party = p
	return nil
}

func copyDocument(doc models.LayoutDocument) models.LayoutDocument {
	out := doc
	out.Windows = append([]models.WindowGeometry(nil), doc.Windows...)
	out.Lines = append([]models.LineConfig(nil), doc.Lines...)
	out.Playlists = make([]models.Playlist, len(doc.Playlists))
	for i, p := range doc.Playlists {
		cp := p
		cp.Items = append([]models.MediaItem(nil), p.Items...)
		out.Playlists[i] = cp
	}
	out.Ticker.Messages = append([]string(nil), doc.Ticker.Messages...)
	return out
}
