package entity

// TeamStatus mirrors the competition team lifecycle owned by the events
// domain. The checkout engine only ever moves teams between InCart,
// AwaitingPaymentConfirmation, Active, Cancelled and
// ApprovedAwaitingPayment; the admin-verification states are read-only here.
type TeamStatus string

const (
	TeamPendingAdminVerification TeamStatus = "pending_admin_verification"
	TeamRejectedByAdmin          TeamStatus = "rejected_by_admin"
	TeamApprovedAwaitingPayment  TeamStatus = "approved_awaiting_payment"
	TeamInCart                   TeamStatus = "in_cart"
	TeamAwaitingPaymentConfirm   TeamStatus = "awaiting_payment_confirmation"
	TeamPaymentFailed            TeamStatus = "payment_failed"
	TeamActive                   TeamStatus = "active"
	TeamCancelled                TeamStatus = "cancelled"
)

// ReleasedTeamStatus is where a team goes when it leaves the purchase flow
// without being paid for: back to the admin-approved queue when its
// competition requires approval, otherwise cancelled outright so it is
// never left orphaned in a cart state.
func ReleasedTeamStatus(requiresApproval bool) TeamStatus {
	if requiresApproval {
		return TeamApprovedAwaitingPayment
	}
	return TeamCancelled
}
