package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var noon = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func TestEffectiveStatus(t *testing.T) {
	start := noon.Add(-2 * time.Hour)
	end := noon.Add(2 * time.Hour)

	// Upcoming event
	assert.Equal(t, StatusPlanned, EffectiveStatus(noon.Add(time.Hour), noon.Add(3*time.Hour), StatusPlanned, noon, 0))
	// Currently running
	assert.Equal(t, StatusRunning, EffectiveStatus(start, end, StatusPlanned, noon, 0))
	// Over
	assert.Equal(t, StatusCompleted, EffectiveStatus(noon.Add(-6*time.Hour), noon.Add(-time.Hour), StatusPlanned, noon, 0))
	// An event starting exactly now is running
	assert.Equal(t, StatusRunning, EffectiveStatus(noon, end, StatusPlanned, noon, 0))
}

func TestEffectiveStatusCancellationWins(t *testing.T) {
	// A cancelled event stays cancelled no matter where its timestamps lie
	assert.Equal(t, StatusCancelled, EffectiveStatus(noon.Add(time.Hour), noon.Add(2*time.Hour), StatusCancelled, noon, 0))
	assert.Equal(t, StatusCancelled, EffectiveStatus(noon.Add(-2*time.Hour), noon.Add(2*time.Hour), StatusCancelled, noon, 0))
	assert.Equal(t, StatusCancelled, EffectiveStatus(noon.Add(-6*time.Hour), noon.Add(-time.Hour), StatusCancelled, noon, 0))
}

func TestEffectiveStatusDefaultDuration(t *testing.T) {
	// Without an end timestamp, the event is assumed to last DefaultEventDuration
	start := noon.Add(-3 * time.Hour)
	assert.Equal(t, StatusRunning, EffectiveStatus(start, time.Time{}, StatusPlanned, noon, 0))
	assert.Equal(t, StatusCompleted, EffectiveStatus(start, time.Time{}, StatusPlanned, noon.Add(2*time.Hour), 0))
}

func TestEffectiveStatusConfiguredDuration(t *testing.T) {
	// The assumed duration is tunable - 8 hours keeps the event running where the 4-hour
	// default would already report it as completed
	start := noon.Add(-6 * time.Hour)
	assert.Equal(t, StatusCompleted, EffectiveStatus(start, time.Time{}, StatusPlanned, noon, 0))
	assert.Equal(t, StatusRunning, EffectiveStatus(start, time.Time{}, StatusPlanned, noon, 8*time.Hour))
	// An explicit end timestamp always wins over the assumed duration
	assert.Equal(t, StatusCompleted, EffectiveStatus(start, noon.Add(-time.Hour), StatusPlanned, noon, 8*time.Hour))
}

func TestBookingConfigEventDuration(t *testing.T) {
	cfg := BookingConfig{DefaultEventDurationHours: 6}
	assert.Equal(t, 6*time.Hour, cfg.EventDuration())
	// Unset hours fall back to the built-in default
	assert.Equal(t, DefaultEventDuration, BookingConfig{}.EventDuration())
}

func TestEventStatusIgnoresStaleStoredStatus(t *testing.T) {
	// A stored "planned" on an event long over must not leak out
	ev := Event{
		StartsAt:     noon.Add(-26 * time.Hour),
		EndsAt:       noon.Add(-20 * time.Hour),
		StoredStatus: StatusPlanned,
	}
	assert.Equal(t, StatusCompleted, ev.Status(noon, 0))
}

func TestRequirement(t *testing.T) {
	ev := Event{
		StaffRequirements: []StaffRequirement{
			{Category: "DJ", Count: 1},
			{Category: "Lighting", Count: 2},
		},
	}
	req := ev.Requirement("Lighting")
	if assert.NotNil(t, req) {
		assert.Equal(t, uint(2), req.Count)
	}
	assert.Nil(t, ev.Requirement("Catering"))
}

func TestParseStaffRequirements(t *testing.T) {
	// The plain array shape
	reqs, err := ParseStaffRequirements(`[{"category": "DJ", "count": 1}, {"category": "Lighting", "count": 2}]`)
	assert.NoError(t, err)
	assert.Len(t, reqs, 2)
	assert.Equal(t, "DJ", reqs[0].Category)
	assert.Equal(t, uint(2), reqs[1].Count)

	// A single object instead of an array
	reqs, err = ParseStaffRequirements(`{"category": "DJ", "count": 1}`)
	assert.NoError(t, err)
	assert.Len(t, reqs, 1)

	// The array re-encoded as a JSON string
	reqs, err = ParseStaffRequirements(`"[{\"category\": \"DJ\", \"count\": 3}]"`)
	assert.NoError(t, err)
	assert.Len(t, reqs, 1)
	assert.Equal(t, uint(3), reqs[0].Count)

	// Empty and null columns yield an empty list
	reqs, err = ParseStaffRequirements("")
	assert.NoError(t, err)
	assert.Empty(t, reqs)
	reqs, err = ParseStaffRequirements("null")
	assert.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestParseStaffRequirementsMalformed(t *testing.T) {
	_, err := ParseStaffRequirements(`[{"category": "DJ"`)
	assert.Error(t, err)
	_, err = ParseStaffRequirements(`42`)
	assert.Error(t, err)
}

func TestParseQualificationRequirementShapes(t *testing.T) {
	// Qualification entries appear as bare names and as objects with a name property
	reqs, err := ParseQualificationRequirements(
		`[{"category": "Lighting", "qualifications": ["Rigging", {"name": "Electrics"}]}]`,
	)
	assert.NoError(t, err)
	if assert.Len(t, reqs, 1) {
		assert.Equal(t, []string{"Rigging", "Electrics"}, reqs[0].Qualifications)
	}
}

func TestParsePriceRates(t *testing.T) {
	rates, err := ParsePriceRates(`[{"category": "DJ", "hourlyRate": 4500}, {"category": "Lighting", "fixedRate": 20000}]`)
	assert.NoError(t, err)
	assert.Len(t, rates, 2)
	assert.Equal(t, uint(4500), rates[0].HourlyRate)
	assert.Equal(t, uint(20000), rates[1].FixedRate)
}

func TestMissingQualifications(t *testing.T) {
	reqs := []QualificationRequirement{
		{Category: "Lighting", Qualifications: []string{"Rigging", "Electrics", "First Aid"}},
		{Category: "DJ", Qualifications: []string{"Mixing"}},
	}

	missing := MissingQualifications(reqs, "Lighting", []string{"Rigging", "Electrics"})
	assert.Equal(t, []string{"First Aid"}, missing)

	// All requirements met
	assert.Empty(t, MissingQualifications(reqs, "Lighting", []string{"Rigging", "Electrics", "First Aid"}))
	// A category without requirements needs nothing
	assert.Empty(t, MissingQualifications(reqs, "Catering", nil))
	// No requirements at all
	assert.Empty(t, MissingQualifications(nil, "Lighting", nil))
}

func TestEligible(t *testing.T) {
	reqs := []QualificationRequirement{
		{Category: "DJ", Qualifications: []string{"Mixing"}},
	}
	assert.True(t, Eligible(reqs, "DJ", []string{"Mixing"}))
	assert.False(t, Eligible(reqs, "DJ", nil))
	assert.True(t, Eligible(reqs, "Lighting", nil))
}

func TestRegistrationStatusActive(t *testing.T) {
	assert.True(t, RegStatusSignedUp.Active())
	assert.True(t, RegStatusConfirmed.Active())
	assert.False(t, RegStatusRejected.Active())
	assert.False(t, RegStatusWithdrawn.Active())
}

func TestInvitationUsable(t *testing.T) {
	inv := Invitation{ExpiresAt: noon.Add(24 * time.Hour)}
	assert.True(t, inv.Usable(noon))

	expired := Invitation{ExpiresAt: noon.Add(-time.Hour)}
	assert.False(t, expired.Usable(noon))

	redeemedAt := noon.Add(-time.Hour)
	redeemed := Invitation{ExpiresAt: noon.Add(24 * time.Hour), RedeemedAt: &redeemedAt}
	assert.False(t, redeemed.Usable(noon))
}
