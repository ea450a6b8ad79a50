package realtime

import "sync"

// Groups tracks which channels have joined which conversation. Membership is
// a tag on the channel only; nothing is persisted.
type Groups struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]Channel  // conversationID -> channelID -> channel
	memberships map[string]map[string]struct{} // channelID -> conversationIDs
}

func NewGroups() *Groups {
	return &Groups{
		rooms:       make(map[string]map[string]Channel),
		memberships: make(map[string]map[string]struct{}),
	}
}

// Join adds ch to the conversation group.
func (g *Groups) Join(conversationID string, ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room := g.rooms[conversationID]
	if room == nil {
		room = make(map[string]Channel)
		g.rooms[conversationID] = room
	}
	room[ch.ID()] = ch

	m := g.memberships[ch.ID()]
	if m == nil {
		m = make(map[string]struct{})
		g.memberships[ch.ID()] = m
	}
	m[conversationID] = struct{}{}
}

// Leave removes ch from the conversation group.
func (g *Groups) Leave(conversationID string, ch Channel) {
	g.mu.Lock()
	g.leaveLocked(conversationID, ch.ID())
	g.mu.Unlock()
}

// LeaveAll removes ch from every group it joined; used on disconnect.
func (g *Groups) LeaveAll(ch Channel) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for conversationID := range g.memberships[ch.ID()] {
		g.leaveLocked(conversationID, ch.ID())
	}
	delete(g.memberships, ch.ID())
}

// IsMember reports whether ch has joined the conversation group.
func (g *Groups) IsMember(conversationID string, ch Channel) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.rooms[conversationID][ch.ID()]
	return ok
}

// Members returns a snapshot of the channels in the conversation group.
func (g *Groups) Members(conversationID string) []Channel {
	g.mu.RLock()
	defer g.mu.RUnlock()

	room := g.rooms[conversationID]
	out := make([]Channel, 0, len(room))
	for _, ch := range room {
		out = append(out, ch)
	}
	return out
}

func (g *Groups) leaveLocked(conversationID, channelID string) {
	if room := g.rooms[conversationID]; room != nil {
		delete(room, channelID)
		if len(room) == 0 {
			delete(g.rooms, conversationID)
		}
	}
	if m := g.memberships[channelID]; m != nil {
		delete(m, conversationID)
		if len(m) == 0 {
			delete(g.memberships, channelID)
		}
	}
}
