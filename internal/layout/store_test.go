package layout

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/line-kiosk/backend/internal/models"
)

func seededStore(t *testing.T) *DocumentStore {
	t.Helper()
	s := NewDocumentStore()
	err := s.ApplyFullSync(json.RawMessage(`{
		"header": {"title": "Plant 4", "subtitle": "Night shift", "backgroundColor": "#222"},
		"logoWidget": {"url": "/media/logo", "visible": true, "x": 10, "y": 10},
		"windows": [{"id": "w1", "x": 0, "y": 0, "w": 100, "h": 100}],
		"lines": [{"id": "TNK-01", "name": "Tank 1", "x": 0, "y": 0, "w": 2, "h": 2}]
	}`))
	if err != nil {
		t.Fatalf("seed sync: %v", err)
	}
	return s
}

func TestFullSyncReplacesSectionsWholesale(t *testing.T) {
	s := seededStore(t)

	err := s.ApplyFullSync(json.RawMessage(`{
		"header": {"title": "Plant 4"},
		"logoWidget": {"url": "/media/logo"},
		"windows": [{"id": "w2", "x": 5, "y": 5, "w": 50, "h": 50}],
		"lines": []
	}`))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	doc := s.Document()
	if len(doc.Windows) != 1 || doc.Windows[0].ID != "w2" {
		t.Errorf("windows not replaced wholesale: %+v", doc.Windows)
	}
	if len(doc.Lines) != 0 {
		t.Errorf("lines not replaced wholesale: %+v", doc.Lines)
	}
}

func TestFullSyncMergesHeaderOneLevelDeep(t *testing.T) {
	s := seededStore(t)

	// A partial broadcast that only touches the title must not erase the
	// other header fields.
	err := s.ApplyFullSync(json.RawMessage(`{"header": {"title": "Plant 5"}}`))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	doc := s.Document()
	if doc.Header.Title != "Plant 5" {
		t.Errorf("title = %q", doc.Header.Title)
	}
	if doc.Header.Subtitle != "Night shift" || doc.Header.BackgroundColor != "#222" {
		t.Errorf("omitted header fields erased: %+v", doc.Header)
	}
}

func TestFullSyncMergesLogoWidgetOneLevelDeep(t *testing.T) {
	s := seededStore(t)

	err := s.ApplyFullSync(json.RawMessage(`{"logoWidget": {"x": 42}}`))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	doc := s.Document()
	if doc.LogoWidget.X != 42 {
		t.Errorf("x = %v", doc.LogoWidget.X)
	}
	if doc.LogoWidget.URL != "/media/logo" || !doc.LogoWidget.Visible {
		t.Errorf("omitted logo fields erased: %+v", doc.LogoWidget)
	}
}

func TestFullSyncOmittedSectionKeepsLocal(t *testing.T) {
	s := seededStore(t)

	err := s.ApplyFullSync(json.RawMessage(`{"windows": []}`))
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	doc := s.Document()
	if doc.Header.Title != "Plant 4" {
		t.Errorf("header lost on section-less sync: %+v", doc.Header)
	}
	if len(doc.Lines) != 1 {
		t.Errorf("omitted lines section erased: %+v", doc.Lines)
	}
	if len(doc.Windows) != 0 {
		t.Errorf("present windows section not replaced: %+v", doc.Windows)
	}
}

func TestFullSyncRejectsMalformedDocument(t *testing.T) {
	s := seededStore(t)
	if err := s.ApplyFullSync(json.RawMessage(`{"header": 7}`)); err == nil {
		t.Fatal("expected error for malformed document")
	}
	// Local replica untouched after the rejection.
	if s.Document().Header.Title != "Plant 4" {
		t.Error("replica mutated by rejected sync")
	}
}

func TestEditGateBlocksMutationsOutsideLock(t *testing.T) {
	s := seededStore(t)
	editing := false
	s.SetEditGate(func() bool { return editing })

	err := s.AddLine(models.LineConfig{ID: "FIL-02"})
	if !errors.Is(err, ErrNotEditing) {
		t.Fatalf("err = %v, want ErrNotEditing", err)
	}

	editing = true
	if err := s.AddLine(models.LineConfig{ID: "FIL-02"}); err != nil {
		t.Fatalf("add while editing: %v", err)
	}
}

func TestLineCRUD(t *testing.T) {
	s := seededStore(t)

	if err := s.AddLine(models.LineConfig{ID: "TNK-01"}); !errors.Is(err, ErrLineExists) {
		t.Errorf("duplicate add err = %v", err)
	}

	name := "Renamed"
	w := 4.0
	mapping := models.DataMapping{
		CountKey: "c", RateKey: "r", TemperatureKey: "t",
		RejectKey: "rj", StatusKey: "s", EfficiencyKey: "e",
	}
	err := s.PatchLine("TNK-01", models.LineConfigPatch{Name: &name, W: &w, DataMapping: &mapping})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}

	doc := s.Document()
	line := doc.Line("TNK-01")
	if line.Name != "Renamed" || line.W != 4 {
		t.Errorf("patched fields wrong: %+v", line)
	}
	if line.X != 0 || line.H != 2 {
		t.Errorf("untouched fields changed: %+v", line)
	}
	if line.DataMapping == nil || line.DataMapping.CountKey != "c" {
		t.Errorf("mapping not applied: %+v", line.DataMapping)
	}

	if err := s.PatchLine("NOPE", models.LineConfigPatch{}); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("patch missing err = %v", err)
	}

	if err := s.RemoveLine("TNK-01"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	docAfter := s.Document()
	if docAfter.Line("TNK-01") != nil {
		t.Error("line not removed")
	}
	if err := s.RemoveLine("TNK-01"); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("second remove err = %v", err)
	}
}
