package model

import "time"

// GuestSession is an anonymous identity with no credential, identified
// by an opaque id embedded in a long-lived guest token.
type GuestSession struct {
	ID        int64  `json:"id"`
	GuestID   string `json:"guestId"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`

	// Set when the guest later registers.
	ConvertedToUserID int64 `json:"convertedToUserId,omitempty"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// GuestTokenResponse is returned when a guest session is created.
type GuestTokenResponse struct {
	GuestToken string `json:"guestToken"`
	GuestID    string `json:"guestId"`
	TokenType  string `json:"tokenType"`
	ExpiresIn  int    `json:"expiresIn"`
}
