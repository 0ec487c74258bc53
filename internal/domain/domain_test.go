package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		input string
		want  Category
	}{
		{"roads", CategoryRoads},
		{"Roads & Potholes", CategoryRoads},
		{"  WATER SUPPLY ", CategoryWaterSupply},
		{"Sanitation & Garbage", CategorySanitation},
		{"street_lights", CategoryStreetLighting},
		{"Parks and Public Spaces", CategoryParks},
		{"Drainage/Sewage", CategoryDrainage},
		{"public-safety", CategoryPublicSafety},
		{"", CategoryOther},
		{"aliens landed", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCategory(tt.input))
		})
	}
}

func TestNormalizeCategory_AlwaysCanonical(t *testing.T) {
	for _, c := range Categories {
		assert.Equal(t, c, NormalizeCategory(c.Label()), "label %q", c.Label())
		assert.Equal(t, c, NormalizeCategory(string(c)))
	}
}

func TestPriorityOrdering(t *testing.T) {
	assert.Less(t, PriorityLow.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityUrgent.Rank())
	assert.False(t, Priority("critical").Valid())
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusResolved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	for _, s := range []ComplaintStatus{StatusSubmitted, StatusInProgress, StatusUnderReview} {
		assert.False(t, s.Terminal(), s)
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, ComplaintStatus("closed").Valid())
}

func TestDeriveStatus(t *testing.T) {
	inProgress := StatusInProgress
	resolved := StatusResolved

	assert.Equal(t, StatusSubmitted, DeriveStatus(StatusSubmitted, nil))

	updates := []ComplaintUpdate{
		{Message: "looking into it", Status: &inProgress},
		{Message: "crew dispatched"},
	}
	assert.Equal(t, StatusInProgress, DeriveStatus(StatusSubmitted, updates))

	updates = append(updates, ComplaintUpdate{Message: "fixed", Status: &resolved}, ComplaintUpdate{Message: "thanks"})
	assert.Equal(t, StatusResolved, DeriveStatus(StatusSubmitted, updates))
}

func TestComplaintClone(t *testing.T) {
	c := &Complaint{ID: "1", Classification: &ClassifierOutput{Category: CategoryRoads}}
	cp := c.Clone()
	cp.Classification.Category = CategoryNoise
	assert.Equal(t, CategoryRoads, c.Classification.Category)
}

func TestPublicID(t *testing.T) {
	id := NewPublicID()
	canonical, ok := CanonicalPublicID(id)
	require.True(t, ok)
	assert.Equal(t, id, canonical)

	canonical, ok = CanonicalPublicID("  cmp-1a2b3c4d ")
	require.True(t, ok)
	assert.Equal(t, "CMP-1A2B3C4D", canonical)

	for _, bad := range []string{"", "CMP-", "CMP-1A2B3C4", "CMP-1A2B3C4DE", "TCK-1A2B3C4D", "CMP-1A2B3C4G"} {
		_, ok := CanonicalPublicID(bad)
		assert.False(t, ok, bad)
	}
}

func TestIsInternalID(t *testing.T) {
	assert.True(t, IsInternalID("6f1c1f4e-8a59-4b43-9d0a-3cb1b0b7d5a2"))
	assert.False(t, IsInternalID("CMP-1A2B3C4D"))
}
