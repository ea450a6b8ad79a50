package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupsJoinLeave(t *testing.T) {
	g := NewGroups()
	a := stubChannel{id: "a", user: "u1"}
	b := stubChannel{id: "b", user: "u2"}

	g.Join("c1", a)
	g.Join("c1", b)
	g.Join("c2", a)

	assert.Len(t, g.Members("c1"), 2)
	assert.True(t, g.IsMember("c2", a))
	assert.False(t, g.IsMember("c2", b))

	g.Leave("c1", b)
	assert.ElementsMatch(t, []Channel{a}, g.Members("c1"))

	g.LeaveAll(a)
	assert.Empty(t, g.Members("c1"))
	assert.Empty(t, g.Members("c2"))
	assert.False(t, g.IsMember("c1", a))
}

func TestGroupsLeaveWithoutJoin(t *testing.T) {
	g := NewGroups()
	assert.NotPanics(t, func() {
		g.Leave("c1", stubChannel{id: "a"})
		g.LeaveAll(stubChannel{id: "a"})
	})
}
