package models

import "time"

const (
	// DefaultClubName is used in receipts and in the concierge prompt.
	DefaultClubName = "Yhalason Court Club"

	// DefaultRemoteTimeout bounds a single remote store call made by a workflow.
	DefaultRemoteTimeout = 10 * time.Second

	// DefaultConfirmationDelay is how long waitlist and membership confirmations stay on screen.
	DefaultConfirmationDelay = 2 * time.Second

	// DefaultDraftTTL is the lifetime of a booking draft in the session store.
	DefaultDraftTTL = 24 * time.Hour

	// ChatRateLimitMessages is the number of assistant messages allowed per window.
	ChatRateLimitMessages = 20

	// ChatRateLimitWindow is the assistant rate limit window.
	ChatRateLimitWindow = time.Minute

	// DefaultAdminTokenTTL is the lifetime of an admin console token.
	DefaultAdminTokenTTL = 12 * time.Hour

	// DefaultNewsTag is applied to news items posted without a tag.
	DefaultNewsTag = "Update"

	// NewsImageURLFormat takes a unix millisecond seed.
	NewsImageURLFormat = "https://picsum.photos/seed/%d/400/300"
)

const (
	IDPrefixReservation = "res"
	IDPrefixWaitlist    = "wl"
	IDPrefixMember      = "mem"
	IDPrefixNews        = "n"
)

const (
	MemberRate    = 500
	NonMemberRate = 800
	GuestFee      = 200
)
