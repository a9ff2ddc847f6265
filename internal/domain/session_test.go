package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }
func strPtr(s string) *string { return &s }

func TestIdentityMatches(t *testing.T) {
	tests := []struct {
		name     string
		snapshot SessionIdentity
		current  SessionIdentity
		want     bool
	}{
		{"both unassigned", SessionIdentity{}, SessionIdentity{}, true},
		{"same id", SessionIdentity{ID: int64Ptr(7)}, SessionIdentity{ID: int64Ptr(7)}, true},
		{"different id", SessionIdentity{ID: int64Ptr(7)}, SessionIdentity{ID: int64Ptr(8)}, false},
		{"snapshot unassigned, current assigned", SessionIdentity{}, SessionIdentity{ID: int64Ptr(7)}, false},
		{"snapshot assigned, current unassigned", SessionIdentity{ID: int64Ptr(7)}, SessionIdentity{}, false},
		{
			"external id does not influence the comparison",
			SessionIdentity{ID: int64Ptr(7), ExternalID: strPtr("a")},
			SessionIdentity{ID: int64Ptr(7), ExternalID: strPtr("b")},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IdentityMatches(tt.snapshot, tt.current))
		})
	}
}

func TestSessionIdentity_Merge(t *testing.T) {
	fresh := SessionIdentity{}

	merged := fresh.Merge(DoneMetadata{SessionID: int64Ptr(42), SessionExternalID: strPtr("ext-42")})
	assert.Equal(t, int64(42), *merged.ID)
	assert.Equal(t, "ext-42", *merged.ExternalID)

	// absent metadata fields never clear assigned identifiers
	unchanged := merged.Merge(DoneMetadata{})
	assert.Equal(t, int64(42), *unchanged.ID)
	assert.Equal(t, "ext-42", *unchanged.ExternalID)
}

func TestSessionIdentity_RequestID(t *testing.T) {
	assert.Equal(t, "", SessionIdentity{}.RequestID())
	assert.Equal(t, "42", SessionIdentity{ID: int64Ptr(42)}.RequestID())
	assert.Equal(t, "ext", SessionIdentity{ID: int64Ptr(42), ExternalID: strPtr("ext")}.RequestID())
}
