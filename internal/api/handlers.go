package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/line-kiosk/backend/internal/config"
	"github.com/line-kiosk/backend/internal/hub"
	"github.com/line-kiosk/backend/internal/models"
	"github.com/line-kiosk/backend/internal/observability"
	"github.com/line-kiosk/backend/internal/storage"
	"github.com/line-kiosk/backend/internal/telemetry"
	"github.com/vmihailenco/msgpack/v5"
)

// Handler bundles the REST endpoints: layout fetch, media assets, mapping
// presets and telemetry snapshots.
type Handler struct {
	layoutStore *storage.LayoutStore
	mediaStore  *storage.MediaStore
	store       *telemetry.Store
	watchdog    *telemetry.Watchdog
	hub         *hub.Hub
	presets     *config.PresetFile
	metrics     *observability.Metrics
	version     string
	startTime   time.Time
}

// NewHandler creates the REST handler.
func NewHandler(layoutStore *storage.LayoutStore, mediaStore *storage.MediaStore, store *telemetry.Store, watchdog *telemetry.Watchdog, h *hub.Hub, presets *config.PresetFile, metrics *observability.Metrics, version string) *Handler {
	return &Handler{
		layoutStore: layoutStore,
		mediaStore:  mediaStore,
		store:       store,
		watchdog:    watchdog,
		hub:         h,
		presets:     presets,
		metrics:     metrics,
		version:     version,
		startTime:   time.Now(),
	}
}

// HandleHealth reports service status.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":        "ok",
		"version":       h.version,
		"uptimeSeconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// HandleGetLayout returns the persisted layout document, or an empty object
// when none has ever been saved.
func (h *Handler) HandleGetLayout(c echo.Context) error {
	raw, err := h.layoutStore.LoadRaw()
	if err != nil {
		return NewInternalError("failed to load layout document", err)
	}
	return c.JSONBlob(http.StatusOK, raw)
}

// HandleTelemetrySnapshot returns the current normalized line map as JSON.
func (h *Handler) HandleTelemetrySnapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Snapshot())
}

// HandleTelemetrySnapshotMsgpack returns the snapshot msgpack-encoded for
// bandwidth-constrained kiosk panels.
func (h *Handler) HandleTelemetrySnapshotMsgpack(c echo.Context) error {
	data, err := msgpack.Marshal(h.store.Snapshot())
	if err != nil {
		return NewInternalError("failed to encode snapshot", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleTelemetryStatus reports connection status, heartbeat and staleness.
func (h *Handler) HandleTelemetryStatus(c echo.Context) error {
	hb := h.store.LastHeartbeat()
	var hbMillis int64
	if !hb.IsZero() {
		hbMillis = hb.UnixMilli()
	}
	return c.JSON(http.StatusOK, map[string]any{
		"connectionStatus": h.store.ConnectionStatus(),
		"lastHeartbeat":    hbMillis,
		"stale":            h.watchdog.Stale(),
		"lastError":        h.store.LastError(),
	})
}

// HandleIngestTelemetry accepts a telemetry frame over plain HTTP for
// sources that cannot hold a socket open.
func (h *Handler) HandleIngestTelemetry(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return NewBadRequestError("failed to read body", err)
	}
	if len(data) == 0 {
		return NewValidationError("body")
	}

	updated, err := h.Ingest(data)
	if err != nil {
		return NewBadRequestError("invalid telemetry frame", err)
	}
	return c.JSON(http.StatusAccepted, map[string]any{"linesUpdated": updated})
}

// Ingest is the shared ingest path for the HTTP and socket sources: decode,
// normalize into the store against the persisted line configs, then fan the
// raw frame out to dashboard subscribers.
func (h *Handler) Ingest(frame []byte) (int, error) {
	batch, err := models.DecodeTelemetryFrame(frame)
	if err != nil {
		h.metrics.FramesDropped.Inc()
		return 0, err
	}
	h.metrics.FramesIngested.Inc()

	doc, _, loadErr := h.layoutStore.Load()
	if loadErr != nil {
		fmt.Printf("[Ingest] Failed to load line configs: %v\n", loadErr)
	}

	updated := h.store.ApplyBatch(batch, doc.Lines)
	if updated > 0 {
		h.metrics.LinesUpdated.Add(float64(updated))
	} else {
		h.metrics.FramesDropped.Inc()
	}

	h.hub.Broadcast(frame)
	return updated, nil
}

// HandleGetPresets lists the configured vendor mapping presets.
func (h *Handler) HandleGetPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, h.presets.Presets)
}

// HandleGetPreset returns one mapping preset by name.
func (h *Handler) HandleGetPreset(c echo.Context) error {
	name := c.Param("name")
	preset := h.presets.Find(name)
	if preset == nil {
		return NewNotFoundError("mapping preset", name)
	}
	return c.JSON(http.StatusOK, preset)
}

// HandleUploadMedia accepts a multipart media upload and returns the asset
// metadata including its public URL.
func (h *Handler) HandleUploadMedia(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("missing file field", err)
	}
	if file.Filename == "" {
		return NewValidationError("filename")
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open upload", err)
	}
	defer src.Close()

	info, err := h.mediaStore.Save(file.Filename, src)
	if err != nil {
		return NewInternalError("failed to save media", err)
	}

	fmt.Printf("[Media] Uploaded %s as %s (%d bytes)\n", info.Name, info.ID, info.Size)
	return c.JSON(http.StatusCreated, info)
}

// HandleListMedia lists recent media assets.
func (h *Handler) HandleListMedia(c echo.Context) error {
	return c.JSON(http.StatusOK, h.mediaStore.List(100))
}

// HandleServeMedia streams a media asset by id.
func (h *Handler) HandleServeMedia(c echo.Context) error {
	id := c.Param("id")
	path, err := h.mediaStore.FilePath(id)
	if err != nil {
		return NewNotFoundError("media", id)
	}
	return c.File(path)
}

// HandleDeleteMedia removes a media asset.
func (h *Handler) HandleDeleteMedia(c echo.Context) error {
	id := c.Param("id")
	if err := h.mediaStore.Delete(id); err != nil {
		return NewNotFoundError("media", id)
	}
	return c.NoContent(http.StatusNoContent)
}
