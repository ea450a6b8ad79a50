package chat

import "time"

// Conversation is the single thread between one staff member and one
// guardian, optionally about one child. At most one exists per
// (tenant, staff, guardian, child) tuple.
type Conversation struct {
	ID             string    `db:"id"`
	TenantID       string    `db:"tenant_id"`
	StaffID        string    `db:"staff_id"`
	GuardianID     string    `db:"guardian_id"`
	ChildID        *string   `db:"child_id"`
	CreatedAt      time.Time `db:"created_at"`
	LastActivityAt time.Time `db:"last_activity_at"`
}

// RoleOf tells how userID takes part in the conversation.
func (c Conversation) RoleOf(userID string) ParticipantRole {
	switch userID {
	case "":
		return ParticipantRoleNone
	case c.StaffID:
		return ParticipantRoleStaff
	case c.GuardianID:
		return ParticipantRoleGuardian
	default:
		return ParticipantRoleNone
	}
}

// HasParticipant tells whether userID is the staff or guardian side.
func (c Conversation) HasParticipant(userID string) bool {
	return c.RoleOf(userID) != ParticipantRoleNone
}

// OtherParticipant returns the counterpart of userID, or "" when userID is not a participant.
func (c Conversation) OtherParticipant(userID string) string {
	switch c.RoleOf(userID) {
	case ParticipantRoleStaff:
		return c.GuardianID
	case ParticipantRoleGuardian:
		return c.StaffID
	default:
		return ""
	}
}

// Recipients returns the participants other than senderID. A supervisor
// covering a conversation reaches both sides.
func (c Conversation) Recipients(senderID string) []string {
	out := make([]string, 0, 2)
	for _, id := range []string{c.StaffID, c.GuardianID} {
		if id != senderID {
			out = append(out, id)
		}
	}
	return out
}

// CanView reports whether the actor may read or observe the conversation.
// Supervisors see every conversation of their own tenant only.
func (c Conversation) CanView(a Actor) bool {
	if a.TenantID != c.TenantID {
		return false
	}
	return a.Supervisor || c.HasParticipant(a.UserID)
}

// Stamp returns the creation time to assign to the next message: now, but
// never earlier than the last accepted message so history stays ordered.
// The result is truncated to microseconds, the resolution of timestamptz.
func (c Conversation) Stamp(now time.Time) time.Time {
	now = now.UTC()
	if last := c.LastActivityAt.UTC(); now.Before(last) {
		now = last
	}
	return now.Truncate(time.Microsecond)
}

// ConversationKey is the uniqueness tuple of a conversation.
type ConversationKey struct {
	TenantID   string
	StaffID    string
	GuardianID string
	ChildID    *string
}

// Child returns the child id or "" when the conversation is not child-scoped.
func (k ConversationKey) Child() string {
	if k.ChildID == nil {
		return ""
	}
	return *k.ChildID
}
