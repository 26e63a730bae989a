package chat

import "testing"

func TestRegistryMultiTabPresence(t *testing.T) {
	r := NewRegistry()
	r.RegisterConnection("alice", "c1")
	r.RegisterConnection("alice", "c2")

	if first, live := r.JoinRoom("T1", "alice", "c1"); !first || !live {
		t.Fatal("first connection of alice should report first")
	}
	if first, _ := r.JoinRoom("T1", "alice", "c2"); first {
		t.Fatal("second tab must not report first")
	}
	if got := r.SubscribersOf("T1"); len(got) != 1 || got[0] != "alice" {
		t.Fatalf("SubscribersOf = %v, want [alice]", got)
	}

	if last := r.LeaveRoom("T1", "alice", "c1"); last {
		t.Fatal("leaving with another tab in the room must not report last")
	}
	if !r.IsSubscribed("T1", "alice") {
		t.Fatal("alice should still be subscribed through c2")
	}
	if last := r.LeaveRoom("T1", "alice", "c2"); !last {
		t.Fatal("final tab leaving should report last")
	}
	if r.IsSubscribed("T1", "alice") {
		t.Fatal("alice should no longer be subscribed")
	}
	if stats := r.Stats(); stats.Rooms != 0 {
		t.Fatalf("empty room was kept: %+v", stats)
	}
}

func TestRegistryLeaveWithoutJoinIsNoop(t *testing.T) {
	r := NewRegistry()
	r.RegisterConnection("alice", "c1")
	if r.LeaveRoom("T1", "alice", "c1") {
		t.Fatal("leave without join reported last")
	}
	if r.HasJoined("c1", "T1") {
		t.Fatal("HasJoined true after no-op leave")
	}
}

func TestRegistryRefusesUnregisteredConnection(t *testing.T) {
	r := NewRegistry()
	r.RegisterConnection("alice", "c1")
	r.Disconnect("alice", "c1")

	if first, live := r.JoinRoom("T1", "alice", "c1"); first || live {
		t.Fatalf("JoinRoom after disconnect = (%v, %v), want (false, false)", first, live)
	}
	if stats := r.Stats(); stats != (RegistryStats{}) {
		t.Fatalf("stats = %+v, want empty", stats)
	}
	if r.HasJoined("c1", "T1") {
		t.Fatal("disconnected connection recorded in room")
	}
}

func TestRegistryDisconnect(t *testing.T) {
	r := NewRegistry()
	r.RegisterConnection("alice", "c1")
	r.RegisterConnection("alice", "c2")
	r.JoinRoom("T2", "alice", "c1")
	r.JoinRoom("T1", "alice", "c1")
	r.JoinRoom("T1", "alice", "c2")

	departures, offline := r.Disconnect("alice", "c1")
	if offline {
		t.Fatal("alice still has c2 and must not be offline")
	}
	if len(departures) != 2 {
		t.Fatalf("departures = %+v, want 2", departures)
	}
	if departures[0] != (Departure{TicketID: "T1", Last: false}) {
		t.Errorf("departures[0] = %+v", departures[0])
	}
	if departures[1] != (Departure{TicketID: "T2", Last: true}) {
		t.Errorf("departures[1] = %+v", departures[1])
	}
	if r.HasJoined("c1", "T1") || r.HasJoined("c1", "T2") {
		t.Error("c1 still joined after disconnect")
	}

	departures, offline = r.Disconnect("alice", "c2")
	if !offline {
		t.Fatal("alice should be offline after her last connection")
	}
	if len(departures) != 1 || !departures[0].Last {
		t.Fatalf("departures = %+v", departures)
	}
	if r.IsConnected("alice") {
		t.Fatal("IsConnected true after full disconnect")
	}
	if stats := r.Stats(); stats != (RegistryStats{}) {
		t.Fatalf("registry not empty: %+v", stats)
	}
}

func TestRegistryStats(t *testing.T) {
	r := NewRegistry()
	r.RegisterConnection("alice", "c1")
	r.RegisterConnection("alice", "c2")
	r.RegisterConnection("bob", "c3")
	r.JoinRoom("T1", "alice", "c1")
	r.JoinRoom("T1", "bob", "c3")

	want := RegistryStats{Connections: 3, Principals: 2, Rooms: 1}
	if got := r.Stats(); got != want {
		t.Fatalf("Stats = %+v, want %+v", got, want)
	}
	if offline := r.UnregisterConnection("alice", "c2"); offline {
		t.Fatal("alice still has c1")
	}
}
