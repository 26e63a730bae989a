package observability

import "testing"

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.RecordChatEvent("join_ticket")
	m.RecordChatEvent("join_ticket")
	m.RecordChatError("send_message", "VALIDATION_ERROR")

	snap := m.Snapshot()
	if snap.OpenConnections != 1 {
		t.Errorf("OpenConnections = %d, want 1", snap.OpenConnections)
	}
	if snap.TotalConnects != 2 {
		t.Errorf("TotalConnects = %d, want 2", snap.TotalConnects)
	}
	if snap.ChatEvents["join_ticket"] != 2 {
		t.Errorf("join_ticket = %d, want 2", snap.ChatEvents["join_ticket"])
	}
	if snap.ChatErrors["send_message|VALIDATION_ERROR"] != 1 {
		t.Errorf("chat errors = %v", snap.ChatErrors)
	}

	// Mutating the snapshot must not touch the live counters.
	snap.ChatEvents["join_ticket"] = 100
	if m.Snapshot().ChatEvents["join_ticket"] != 2 {
		t.Error("snapshot shares storage with metrics")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ConnectionOpened()
	m.RecordChatEvent("x")
	m.RecordChatError("x", "y")
	if snap := m.Snapshot(); snap.OpenConnections != 0 {
		t.Errorf("nil snapshot = %+v", snap)
	}
}
