package domain

import "strconv"

// SessionIdentity identifies the conversation a turn belongs to. A
// brand-new session has both fields nil until the backend assigns
// identifiers on the first successful turn.
type SessionIdentity struct {
	ID         *int64
	ExternalID *string
}

// IdentityMatches reports whether a turn captured under snapshot may be
// attributed to the currently active session. Two identities match when
// both session IDs are nil (still-unassigned new session) or both are
// equal non-nil values. This is deliberately a pure function over two
// plain values so staleness is decidable without any UI state.
func IdentityMatches(snapshot, current SessionIdentity) bool {
	if snapshot.ID == nil && current.ID == nil {
		return true
	}
	if snapshot.ID == nil || current.ID == nil {
		return false
	}
	return *snapshot.ID == *current.ID
}

// Merge applies authoritative identifiers from a completed turn's
// metadata. Only provided fields are taken; a nil metadata field never
// clears an assigned identifier.
func (s SessionIdentity) Merge(meta DoneMetadata) SessionIdentity {
	merged := s
	if meta.SessionID != nil {
		id := *meta.SessionID
		merged.ID = &id
	}
	if meta.SessionExternalID != nil {
		ext := *meta.SessionExternalID
		merged.ExternalID = &ext
	}
	return merged
}

// RequestID returns the identifier sent in outgoing chat requests.
// The external ID is preferred; a numeric-only identity is formatted as
// its decimal string. Empty means the backend should open a new session.
func (s SessionIdentity) RequestID() string {
	if s.ExternalID != nil {
		return *s.ExternalID
	}
	if s.ID != nil {
		return strconv.FormatInt(*s.ID, 10)
	}
	return ""
}

// Assigned reports whether the backend has assigned this session an ID.
func (s SessionIdentity) Assigned() bool {
	return s.ID != nil
}
