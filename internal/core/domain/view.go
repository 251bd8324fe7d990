package domain

// Screen is the application view a user is allowed to see.
type Screen string

const (
	ScreenAdmin               Screen = "admin"
	ScreenSynetich            Screen = "synetich"
	ScreenRegistrationPending Screen = "registration_pending"
	ScreenPivaIntake          Screen = "piva_intake"
	ScreenApprovalPending     Screen = "approval_pending"
	ScreenPayment             Screen = "payment"
	ScreenRejected            Screen = "rejected"
	ScreenDashboard           Screen = "dashboard"
)

// Screens lists every screen ComputeView can return.
var Screens = []Screen{
	ScreenAdmin,
	ScreenSynetich,
	ScreenRegistrationPending,
	ScreenPivaIntake,
	ScreenApprovalPending,
	ScreenPayment,
	ScreenRejected,
	ScreenDashboard,
}

// Terminal reports whether no automatic transition leaves s.
func (s Screen) Terminal() bool {
	return s == ScreenDashboard || s == ScreenRejected
}

// AccountState holds the persisted fields a Screen is derived from.
type AccountState struct {
	Role                       Role
	RegistrationApprovalStatus ApprovalStatus
	PivaFormSubmitted          bool
	PivaApprovalStatus         ApprovalStatus
	SubscriptionStatus         SubscriptionStatus
}

// ComputeView maps an account state to exactly one Screen. Rules are evaluated
// in priority order and the first match wins; roles short-circuit the business
// flow. Absent approval statuses count as pending.
func ComputeView(s AccountState) Screen {
	reg := s.RegistrationApprovalStatus.Normalize()
	piva := s.PivaApprovalStatus.Normalize()

	switch {
	case s.Role == RoleAdmin:
		return ScreenAdmin
	case s.Role == RoleSynetichAdmin:
		return ScreenSynetich
	case reg == ApprovalPending:
		return ScreenRegistrationPending
	case reg == ApprovalApproved && !s.PivaFormSubmitted:
		return ScreenPivaIntake
	case s.PivaFormSubmitted && piva == ApprovalPending:
		return ScreenApprovalPending
	case piva == ApprovalApproved && s.SubscriptionStatus != SubscriptionActive:
		return ScreenPayment
	case piva == ApprovalRejected || reg == ApprovalRejected:
		return ScreenRejected
	default:
		return ScreenDashboard
	}
}
