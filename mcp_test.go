package releve

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/releve/internal/store"
)

var testImpl = &mcp.Implementation{Name: "releve-test", Version: "0.1.0"}

// mcpSession registers the service's tools and returns a connected
// client session that can call them end-to-end.
func mcpSession(t *testing.T, svc *Service) *mcp.ClientSession {
	t.Helper()

	srv := mcp.NewServer(testImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	return session
}

// callTool invokes a tool and returns the JSON text from the first TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

// --- releve_progress ---

func TestMCP_Progress(t *testing.T) {
	svc := newTestService(t, []string{"Nova 12"})
	session := mcpSession(t, svc)

	text := callTool(t, session, "releve_progress", map[string]any{})

	var st Status
	if err := json.Unmarshal([]byte(text), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.RunID == "" {
		t.Error("expected non-empty run_id")
	}
	if st.Source != "gsmarena" {
		t.Errorf("Source = %q, want %q", st.Source, "gsmarena")
	}
	if st.Running {
		t.Error("Running = true with no run started")
	}
}

// --- releve_summary ---

func TestMCP_Summary(t *testing.T) {
	svc := newTestService(t, []string{"Nova 12"})
	ctx := context.Background()

	if err := svc.store.SeedItems(ctx, []store.SeedItem{{Label: "nova 12", Display: "Nova 12"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.store.UpsertResult(ctx, &store.Result{
		Label: "nova 12", Source: "gsmarena",
		DateText: "2023, December 26", Confidence: "found",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	session := mcpSession(t, svc)

	text := callTool(t, session, "releve_summary", map[string]any{})

	var sum store.Summary
	if err := json.Unmarshal([]byte(text), &sum); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sum.Total != 1 || sum.Found != 1 {
		t.Errorf("summary = %+v, want total=1 found=1", sum)
	}
}

// --- releve_events ---

func TestMCP_Events_Empty(t *testing.T) {
	svc := newTestService(t, []string{"Nova 12"})
	session := mcpSession(t, svc)

	text := callTool(t, session, "releve_events", map[string]any{"limit": 5})

	var events []*store.Event
	if err := json.Unmarshal([]byte(text), &events); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %d, want 0 on a fresh ledger", len(events))
	}
}

// --- releve_item ---

func TestMCP_Item(t *testing.T) {
	svc := newTestService(t, []string{"Nova 12"})
	ctx := context.Background()
	if err := svc.store.SeedItems(ctx, []store.SeedItem{{Label: "nova 12", Display: "Nova 12"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.store.UpsertResult(ctx, &store.Result{
		Label: "nova 12", Source: "gsmarena",
		DateText: "2023, December 26", Confidence: "found",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	session := mcpSession(t, svc)

	// The display spelling resolves to the normalized ledger label.
	text := callTool(t, session, "releve_item", map[string]any{"label": "Nova 12"})

	var det ItemDetail
	if err := json.Unmarshal([]byte(text), &det); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if det.Item == nil || det.Item.Label != "nova 12" || det.Item.Status != store.StatusPending {
		t.Errorf("item = %+v, want pending nova 12", det.Item)
	}
	if det.Result == nil || det.Result.DateText != "2023, December 26" {
		t.Errorf("result = %+v, want the stored date", det.Result)
	}
}

func TestMCP_Item_Unknown(t *testing.T) {
	svc := newTestService(t, []string{"Nova 12"})
	session := mcpSession(t, svc)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "releve_item",
		Arguments: map[string]any{"label": "ghost"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	toolErr := result.GetError()
	if toolErr == nil || !strings.Contains(toolErr.Error(), "unknown item") {
		t.Fatalf("tool error = %v, want unknown item", toolErr)
	}
}

// --- releve_errors ---

func TestMCP_Errors(t *testing.T) {
	svc := newTestService(t, []string{"Nova 12"})
	ctx := context.Background()
	if err := svc.store.SeedItems(ctx, []store.SeedItem{{Label: "nova 12", Display: "Nova 12"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.store.MarkErrored(ctx, "nova 12", "boom"); err != nil {
		t.Fatalf("mark errored: %v", err)
	}
	session := mcpSession(t, svc)

	text := callTool(t, session, "releve_errors", map[string]any{})

	var items []*store.Item
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 1 || items[0].LastError != "boom" {
		t.Fatalf("items = %+v, want one errored row", items)
	}
}

// --- releve_snapshot ---

func TestMCP_Snapshot_NoRun(t *testing.T) {
	svc := newTestService(t, []string{"Nova 12"})
	session := mcpSession(t, svc)

	text := callTool(t, session, "releve_snapshot", map[string]any{})

	var ack SnapshotAck
	if err := json.Unmarshal([]byte(text), &ack); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ack.Triggered || ack.Busy {
		t.Errorf("ack = %+v, want error ack", ack)
	}
	if !strings.Contains(ack.Error, "no run") {
		t.Errorf("ack.Error = %q, want no-run error", ack.Error)
	}
}
