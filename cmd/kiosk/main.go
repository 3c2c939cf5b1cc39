// Command kiosk is a headless kiosk agent: it mirrors the layout document,
// subscribes to the live telemetry feed and prints line state transitions.
// Useful for soak-testing a panel deployment without a browser attached.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/line-kiosk/backend/internal/layout"
	"github.com/line-kiosk/backend/internal/models"
	"github.com/line-kiosk/backend/internal/telemetry"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8090", "Kiosk server base URL")
	wsURL := flag.String("ws", "ws://localhost:8090", "Kiosk server WebSocket base URL")
	user := flag.String("user", "", "Identity used for edit-lock requests")
	flag.Parse()

	identity := *user
	if identity == "" {
		identity = "kiosk-" + uuid.New().String()[:8]
	}

	// Initial layout fetch
	docs := layout.NewDocumentStore()
	if err := fetchLayout(*serverURL, docs); err != nil {
		fmt.Printf("[Kiosk] Initial layout fetch failed: %v\n", err)
	}

	// Edit-lock state machine; the document store refuses local edits
	// unless this client holds the lock.
	machine := layout.NewLockMachine(identity)
	docs.SetEditGate(machine.Editing)
	machine.OnChange(func(state layout.LockState, holder string) {
		fmt.Printf("[Kiosk] Lock state: %s (holder=%q)\n", state, holder)
	})
	machine.OnDeny(func(holder string) {
		fmt.Printf("[Kiosk] Edit denied: layout is being edited by %s\n", holder)
	})
	machine.OnEvict(func() {
		fmt.Println("[Kiosk] Evicted from edit mode by another editor")
	})

	// Layout coordination connection
	sync := layout.NewSyncClient(*wsURL+"/ws/layout", identity, machine, docs)
	sync.OnError(func(msg string) {
		fmt.Printf("[Kiosk] Sync notice: %s\n", msg)
	})
	if err := sync.Connect(); err != nil {
		fmt.Printf("[Kiosk] Layout sync connect failed, will retry: %v\n", err)
	}
	defer sync.Close()

	// Telemetry store, watchdog and transport
	store := telemetry.NewStore(0, 0)
	defer store.Close()

	watchdog := telemetry.NewWatchdog(store, 0, 0)
	watchdog.Start()
	defer watchdog.Stop()

	transport := telemetry.NewTransport(*wsURL+"/ws/telemetry", 0)
	transport.OnStatus(func(status string) {
		store.SetConnectionStatus(status)
		fmt.Printf("[Kiosk] Telemetry %s\n", status)
	})
	transport.OnError(store.SetError)
	transport.OnMessage(func(batch []models.RawTelemetryMessage) {
		if n := store.ApplyBatch(batch, docs.Lines()); n > 0 {
			for id, rec := range store.Snapshot() {
				fmt.Printf("[Kiosk] %s: %s count=%.0f temp=%.1f trend=%d\n",
					id, rec.Status, rec.Count, rec.Temperature, len(rec.Trend))
			}
		}
	})
	if err := transport.Connect(); err != nil {
		fmt.Printf("[Kiosk] Telemetry connect failed, will retry: %v\n", err)
	}
	defer transport.Close()

	// Periodic staleness report
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			if watchdog.Stale() {
				fmt.Println("[Kiosk] WARNING: telemetry is stale")
			}
		}
	}()

	fmt.Printf("[Kiosk] Running as %s against %s\n", identity, *serverURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("\n[Kiosk] Shutting down")
}

// fetchLayout loads the persisted document into the local replica.
func fetchLayout(baseURL string, docs *layout.DocumentStore) error {
	resp, err := http.Get(baseURL + "/api/layout")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return docs.ApplyFullSync(json.RawMessage(data))
}
