package chat

// ParticipantRole expresses how a user relates to a conversation.
type ParticipantRole int16

const (
	ParticipantRoleNone ParticipantRole = iota
	ParticipantRoleStaff
	ParticipantRoleGuardian
)

func (r ParticipantRole) String() string {
	switch r {
	case ParticipantRoleStaff:
		return "staff"
	case ParticipantRoleGuardian:
		return "guardian"
	default:
		return "none"
	}
}

// Actor is the authenticated user performing an operation.
// Supervisor is a capability decided outside this package.
type Actor struct {
	UserID     string
	TenantID   string
	Supervisor bool
}
