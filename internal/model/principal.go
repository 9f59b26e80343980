package model

import "strconv"

// PrincipalType discriminates the identity attached to a request.
type PrincipalType string

const (
	PrincipalUser      PrincipalType = "user"
	PrincipalGuest     PrincipalType = "guest"
	PrincipalAnonymous PrincipalType = "anonymous"
)

// Principal is the identity attributed to a request: a registered user,
// a guest session, or anonymous. Only the fields valid for the variant
// are populated.
type Principal struct {
	Type    PrincipalType
	User    *User  // set when Type == PrincipalUser
	GuestID string // set when Type == PrincipalGuest
}

// Anonymous is the zero-credential principal.
var Anonymous = Principal{Type: PrincipalAnonymous}

// UserPrincipal builds a registered-user principal.
func UserPrincipal(u *User) Principal {
	return Principal{Type: PrincipalUser, User: u}
}

// GuestPrincipal builds a guest-session principal.
func GuestPrincipal(guestID string) Principal {
	return Principal{Type: PrincipalGuest, GuestID: guestID}
}

// IsAuthenticated reports whether the principal carries a usable identity.
func (p Principal) IsAuthenticated() bool {
	return p.Type == PrincipalUser || p.Type == PrincipalGuest
}

// Key returns the ledger key for this principal, or "" for anonymous.
func (p Principal) Key() string {
	switch p.Type {
	case PrincipalUser:
		return "user:" + strconv.FormatInt(p.User.ID, 10)
	case PrincipalGuest:
		return "guest:" + p.GuestID
	default:
		return ""
	}
}

// OwnerKey derives a ledger key from a job's owner columns, or "" when
// the job is unowned.
func OwnerKey(userID int64, guestID string) string {
	if userID != 0 {
		return "user:" + strconv.FormatInt(userID, 10)
	}
	if guestID != "" {
		return "guest:" + guestID
	}
	return ""
}
