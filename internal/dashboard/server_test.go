package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/annikahq/planner-bridge/internal/journal"
	"github.com/annikahq/planner-bridge/internal/syncer"
)

func startTestServer(t *testing.T, stats StatsSource) *Server {
	t.Helper()
	server := NewServer(&Config{
		Port:   0, // Use random available port
		Stats:  stats,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	time.Sleep(100 * time.Millisecond)
	return server
}

func dialTestClient(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws://" + server.GetAddr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	// Drain the hello message
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read hello message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal hello: %v", err)
	}
	if msg.Type != MessageTypeHello {
		t.Fatalf("Expected hello message, got %s", msg.Type)
	}
	return conn
}

func TestServerStartStop(t *testing.T) {
	server := startTestServer(t, nil)
	if server.GetAddr() == "" {
		t.Fatal("Server address is empty")
	}
}

func TestWebSocketConnection(t *testing.T) {
	server := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dialTestClient(t, ctx, server)

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}
}

func TestSyncEventBroadcast(t *testing.T) {
	server := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialTestClient(t, ctx, server)

	server.SyncEvent(syncer.Event{
		TaskID:    "task-1",
		PlannerID: "p-1",
		Action:    "upload",
		Outcome:   "ok",
	})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeSyncEvent {
		t.Errorf("Expected message type %s, got %s", MessageTypeSyncEvent, msg.Type)
	}

	var ev syncer.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatalf("Failed to unmarshal event data: %v", err)
	}
	if ev.TaskID != "task-1" || ev.Action != "upload" {
		t.Errorf("Event mismatch: %+v", ev)
	}
}

func TestSweepCompleteBroadcast(t *testing.T) {
	server := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialTestClient(t, ctx, server)

	server.SweepComplete(&syncer.Report{Scanned: 5, Uploads: 2, Skips: 3})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeSweepComplete {
		t.Errorf("Expected message type %s, got %s", MessageTypeSweepComplete, msg.Type)
	}

	var report syncer.Report
	if err := json.Unmarshal(msg.Data, &report); err != nil {
		t.Fatalf("Failed to unmarshal report: %v", err)
	}
	if report.Scanned != 5 || report.Uploads != 2 {
		t.Errorf("Report mismatch: %+v", report)
	}
}

func TestMultipleClients(t *testing.T) {
	server := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	numClients := 3
	for i := 0; i < numClients; i++ {
		dialTestClient(t, ctx, server)
	}

	if count := server.ClientCount(); count != numClients {
		t.Errorf("Expected %d clients, got %d", numClients, count)
	}
}

type fakeStats struct {
	stats *journal.Stats
}

func (f *fakeStats) GetStats(ctx context.Context) (*journal.Stats, error) {
	return f.stats, nil
}

func TestStatsEndpoint(t *testing.T) {
	server := startTestServer(t, &fakeStats{stats: &journal.Stats{
		Total: 7,
		ByAction: map[journal.Action]int{
			journal.ActionUpload: 4,
			journal.ActionSkip:   3,
		},
	}})

	resp, err := http.Get("http://" + server.GetAddr() + "/stats")
	if err != nil {
		t.Fatalf("Failed to GET /stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var stats journal.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.Total != 7 {
		t.Errorf("Total = %d, want 7", stats.Total)
	}
	if stats.ByAction[journal.ActionUpload] != 4 {
		t.Errorf("uploads = %d, want 4", stats.ByAction[journal.ActionUpload])
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := startTestServer(t, nil)

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("Failed to GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("Failed to unmarshal health: %v", err)
	}
	if health["status"] != "ok" {
		t.Errorf("status = %v, want ok", health["status"])
	}
}
