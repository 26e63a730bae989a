package chat

import (
	"sort"
	"sync"
)

type set map[string]struct{}

// Registry tracks live connections per principal and room membership per
// ticket. Room presence is counted per principal: a principal with several
// connections in one room is a single participant until the last of those
// connections leaves.
//
// Empty sets are always removed, so a key exists only while it has members.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]set            // principal -> connection ids
	rooms       map[string]map[string]set // ticket -> principal -> connection ids
	joined      map[string]set            // connection -> ticket ids
}

// Departure reports a room a disconnecting connection was in.
type Departure struct {
	TicketID string
	// Last is true when no other connection of the principal remains in the room.
	Last bool
}

// RegistryStats summarizes registry size.
type RegistryStats struct {
	Connections int `json:"connections"`
	Principals  int `json:"principals"`
	Rooms       int `json:"rooms"`
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]set),
		rooms:       make(map[string]map[string]set),
		joined:      make(map[string]set),
	}
}

// RegisterConnection records a live connection for the principal.
func (r *Registry) RegisterConnection(principalID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.connections[principalID]
	if conns == nil {
		conns = make(set)
		r.connections[principalID] = conns
	}
	conns[connectionID] = struct{}{}
}

// UnregisterConnection removes the connection and reports whether the
// principal has no connections left.
func (r *Registry) UnregisterConnection(principalID, connectionID string) (offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(principalID, connectionID)
}

// JoinRoom subscribes the connection's principal to the ticket room. first is
// true when the principal was not in the room before this call. live is false,
// and nothing changes, when the connection is not registered.
func (r *Registry) JoinRoom(ticketID, principalID, connectionID string) (first, live bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[principalID][connectionID]; !ok {
		return false, false
	}

	members := r.rooms[ticketID]
	if members == nil {
		members = make(map[string]set)
		r.rooms[ticketID] = members
	}
	conns := members[principalID]
	if conns == nil {
		conns = make(set)
		members[principalID] = conns
		first = true
	}
	conns[connectionID] = struct{}{}

	tickets := r.joined[connectionID]
	if tickets == nil {
		tickets = make(set)
		r.joined[connectionID] = tickets
	}
	tickets[ticketID] = struct{}{}
	return first, true
}

// LeaveRoom removes the connection from the ticket room. last is true when
// this was the principal's final connection in the room. Leaving a room the
// connection never joined is a no-op returning false.
func (r *Registry) LeaveRoom(ticketID, principalID, connectionID string) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(ticketID, principalID, connectionID)
}

// Disconnect removes the connection from every room it joined and from the
// principal's connection set.
func (r *Registry) Disconnect(principalID, connectionID string) (departures []Departure, offline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets := make([]string, 0, len(r.joined[connectionID]))
	for ticketID := range r.joined[connectionID] {
		tickets = append(tickets, ticketID)
	}
	sort.Strings(tickets)

	for _, ticketID := range tickets {
		last := r.leaveLocked(ticketID, principalID, connectionID)
		departures = append(departures, Departure{TicketID: ticketID, Last: last})
	}
	offline = r.unregisterLocked(principalID, connectionID)
	return departures, offline
}

// HasJoined reports whether the connection is in the ticket room.
func (r *Registry) HasJoined(connectionID, ticketID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.joined[connectionID][ticketID]
	return ok
}

// IsConnected reports whether the principal has at least one live connection.
func (r *Registry) IsConnected(principalID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections[principalID]) > 0
}

// SubscribersOf lists the principals in the ticket room, sorted.
func (r *Registry) SubscribersOf(ticketID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[ticketID]
	out := make([]string, 0, len(members))
	for principalID := range members {
		out = append(out, principalID)
	}
	sort.Strings(out)
	return out
}

// IsSubscribed reports whether the principal is in the ticket room.
func (r *Registry) IsSubscribed(ticketID, principalID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[ticketID][principalID]
	return ok
}

// Stats returns current registry sizes.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := RegistryStats{Principals: len(r.connections), Rooms: len(r.rooms)}
	for _, conns := range r.connections {
		stats.Connections += len(conns)
	}
	return stats
}

func (r *Registry) leaveLocked(ticketID, principalID, connectionID string) bool {
	tickets := r.joined[connectionID]
	if _, ok := tickets[ticketID]; !ok {
		return false
	}
	delete(tickets, ticketID)
	if len(tickets) == 0 {
		delete(r.joined, connectionID)
	}

	members := r.rooms[ticketID]
	conns := members[principalID]
	delete(conns, connectionID)
	if len(conns) > 0 {
		return false
	}
	delete(members, principalID)
	if len(members) == 0 {
		delete(r.rooms, ticketID)
	}
	return true
}

func (r *Registry) unregisterLocked(principalID, connectionID string) bool {
	conns := r.connections[principalID]
	delete(conns, connectionID)
	if len(conns) == 0 {
		delete(r.connections, principalID)
		return true
	}
	return false
}
