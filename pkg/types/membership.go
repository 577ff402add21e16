package types

type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusExpired UserStatus = "expired"
	UserStatusBlocked UserStatus = "blocked"
)

type MembershipChangeReason string

const (
	MembershipChangeReasonPurchase MembershipChangeReason = "purchase"
	MembershipChangeReasonRenewal  MembershipChangeReason = "renewal"
	MembershipChangeReasonExpiry   MembershipChangeReason = "expiry"
	MembershipChangeReasonGrant    MembershipChangeReason = "grant"
)

type UpsellStatus string

const (
	UpsellStatusPending  UpsellStatus = "pending"
	UpsellStatusAccepted UpsellStatus = "accepted"
	UpsellStatusDeclined UpsellStatus = "declined"
	UpsellStatusExpired  UpsellStatus = "expired"
)

// NotifyOutcome reports what happened to a best-effort side effect after a
// state change committed. State changes are authoritative; a failed delivery
// never rolls them back, but callers can observe it here.
type NotifyOutcome string

const (
	NotifySent    NotifyOutcome = "sent"
	NotifyFailed  NotifyOutcome = "failed"
	NotifySkipped NotifyOutcome = "skipped"
)
