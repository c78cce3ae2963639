package models

// Actor roles issued by the identity service.
const (
	RoleClient  = "client"
	RoleTrainer = "trainer"
	RoleAdmin   = "admin"
)

// AdminRank orders the admin hierarchy. Ranks compare numerically: a higher
// rank may act on any lower one.
type AdminRank int

const (
	AdminModerator AdminRank = iota + 1
	AdminManager
	AdminSuper
)

// AdminCapability names a single privileged action.
type AdminCapability string

const (
	CapCancelAnyBooking   AdminCapability = "cancel_any_booking"
	CapEditAvailability   AdminCapability = "edit_availability"
	CapIssueRefund        AdminCapability = "issue_refund"
	CapManageAdmins       AdminCapability = "manage_admins"
	CapOverrideTransition AdminCapability = "override_transition"
)

// adminCapabilities is the explicit capability set of each rank. Higher ranks
// repeat lower-rank capabilities rather than inheriting implicitly, so the
// table is the complete truth.
var adminCapabilities = map[AdminRank][]AdminCapability{
	AdminModerator: {CapCancelAnyBooking},
	AdminManager:   {CapCancelAnyBooking, CapEditAvailability, CapIssueRefund},
	AdminSuper:     {CapCancelAnyBooking, CapEditAvailability, CapIssueRefund, CapManageAdmins, CapOverrideTransition},
}

// Has reports whether the rank carries the capability.
func (r AdminRank) Has(cap AdminCapability) bool {
	for _, c := range adminCapabilities[r] {
		if c == cap {
			return true
		}
	}
	return false
}

// CanActOn reports whether an admin of this rank may act on another admin.
// A strict total-order comparison, no special cases.
func (r AdminRank) CanActOn(other AdminRank) bool {
	return r > other
}
