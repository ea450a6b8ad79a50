package realtime

import "sync"

// Presence maps a user to the set of channels that user currently has open.
// It holds no persistent state; clients re-register after a restart.
type Presence struct {
	mu    sync.RWMutex
	users map[string]map[string]Channel // userID -> channelID -> channel
}

func NewPresence() *Presence {
	return &Presence{users: make(map[string]map[string]Channel)}
}

// Register adds ch to userID's live set.
func (p *Presence) Register(userID string, ch Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := p.users[userID]
	if set == nil {
		set = make(map[string]Channel)
		p.users[userID] = set
	}
	set[ch.ID()] = ch
}

// Unregister removes ch from userID's live set and drops the entry once it is empty.
func (p *Presence) Unregister(userID string, ch Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	set := p.users[userID]
	if set == nil {
		return
	}
	delete(set, ch.ID())
	if len(set) == 0 {
		delete(p.users, userID)
	}
}

// ChannelsFor returns a snapshot of userID's live channels. A returned
// channel may die before the caller sends to it.
func (p *Presence) ChannelsFor(userID string) []Channel {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set := p.users[userID]
	out := make([]Channel, 0, len(set))
	for _, ch := range set {
		out = append(out, ch)
	}
	return out
}

// Count returns the number of users and channels currently registered.
func (p *Presence) Count() (users int, channels int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, set := range p.users {
		channels += len(set)
	}
	return len(p.users), channels
}
