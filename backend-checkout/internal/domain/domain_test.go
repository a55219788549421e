package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func occurrence(id, group string, start time.Time, price string) ClassSessionOccurrence {
	return ClassSessionOccurrence{
		ID:               id,
		RecurringGroupID: group,
		Title:            "Beginner Clinic",
		StartTime:        start,
		EndTime:          start.Add(time.Hour),
		Price:            decimal.RequireFromString(price),
		Status:           SessionStatusAvailable,
		MaxParticipants:  8,
	}
}

func TestNormalizeUserID(t *testing.T) {
	tests := []struct {
		raw  string
		want UserID
	}{
		{"42", "42"},
		{" 007 ", "7"},
		{"-3", "-3"},
		{"abc-42", "abc-42"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeUserID(tt.raw))
		})
	}
}

func TestUserID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    UserID
		wantErr bool
	}{
		{"number", `42`, "42", false},
		{"float number", `42.0`, "42", false},
		{"string", `"42"`, "42", false},
		{"padded string", `"0042"`, "42", false},
		{"text", `"u-1"`, "u-1", false},
		{"null", `null`, "", false},
		{"object", `{}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id UserID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestRegistration_MixedIDRepresentations(t *testing.T) {
	var o ClassSessionOccurrence
	payload := `{"id":"s1","registrations":[{"registrationId":"r1","userId":17,"memberName":"Ana"}]}`
	require.NoError(t, json.Unmarshal([]byte(payload), &o))

	assert.True(t, o.IsRegistered(NormalizeUserID("17")))
	assert.False(t, o.IsRegistered(NormalizeUserID("18")))
	assert.False(t, o.IsRegistered(""))
}

func TestClassSessionOccurrence_Capacity(t *testing.T) {
	o := occurrence("s1", "", time.Now(), "10")
	o.CurrentParticipants = 7
	assert.False(t, o.AtCapacity())
	assert.Equal(t, 1, o.SeatsLeft())

	o.CurrentParticipants = 8
	assert.True(t, o.AtCapacity())
	assert.Equal(t, 0, o.SeatsLeft())

	stale := occurrence("s2", "", time.Now(), "10")
	stale.Status = SessionStatusFull
	assert.True(t, stale.AtCapacity())
	assert.Equal(t, 0, stale.SeatsLeft())
}

func TestNewSessionGroup(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	input := []ClassSessionOccurrence{
		occurrence("c", "g1", base.AddDate(0, 0, 14), "20"),
		occurrence("a", "g1", base, "20"),
		occurrence("b", "g1", base.AddDate(0, 0, 7), "20"),
	}

	g, err := NewSessionGroup("g1", input)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, g.IDs())
	assert.Equal(t, "a", g.First().ID)
	assert.True(t, g.IsRecurring())
	assert.True(t, g.TotalPrice().Equal(decimal.NewFromInt(60)))
	assert.Equal(t, "02 Mar 2026 - 16 Mar 2026", g.DateRange().String())
	assert.Equal(t, "c", input[0].ID, "input must not be reordered")

	_, err = NewSessionGroup("g1", nil)
	assert.ErrorIs(t, err, ErrEmptySessionGroup)
}

func TestSessionGroup_SingleDateRange(t *testing.T) {
	day := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	g, err := NewSessionGroup(SingletonKey("x"), []ClassSessionOccurrence{occurrence("x", "", day, "15")})
	require.NoError(t, err)

	assert.False(t, g.IsRecurring())
	assert.Equal(t, "single_x", g.Key())
	assert.Equal(t, "01 May 2026", g.DateRange().String())
}

func TestBookingTarget_Validate(t *testing.T) {
	court, err := NewCourtTarget(CourtSelection{SlotIDs: []string{"slot-1"}, Price: decimal.NewFromInt(40)})
	require.NoError(t, err)
	assert.NoError(t, court.Validate())
	assert.True(t, court.AcceptsVoucher())

	_, err = NewCourtTarget(CourtSelection{})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = NewEventTarget(EventSelection{EventID: "e1", Fee: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	mixed := court
	mixed.Event = &EventSelection{EventID: "e1"}
	assert.ErrorIs(t, mixed.Validate(), ErrInvalidTarget)

	unknown := BookingTarget{Kind: "parking"}
	assert.ErrorIs(t, unknown.Validate(), ErrInvalidTarget)
}

func TestBookingTarget_Acceptance(t *testing.T) {
	class, err := NewClassSessionTarget(occurrence("s1", "", time.Now(), "20"))
	require.NoError(t, err)
	event, err := NewEventTarget(EventSelection{EventID: "e1", Fee: decimal.NewFromInt(30)})
	require.NoError(t, err)
	repl, err := NewReplacementTarget(ReplacementSession{SessionID: "s9", Amount: decimal.NewFromInt(25)})
	require.NoError(t, err)

	assert.False(t, class.AcceptsVoucher())
	assert.False(t, event.AcceptsVoucher())
	assert.False(t, repl.AcceptsVoucher())

	assert.True(t, class.AcceptsEquipment())
	assert.False(t, event.AcceptsEquipment())
	assert.False(t, repl.AcceptsEquipment())

	assert.True(t, repl.BaseAmount().Equal(decimal.NewFromInt(25)))
	assert.True(t, event.BaseAmount().Equal(decimal.NewFromInt(30)))
}

func TestBuildIntent(t *testing.T) {
	now := time.Now()
	class, _ := NewClassSessionTarget(occurrence("s1", "", now, "20"))
	group, _ := NewSessionGroup("g1", []ClassSessionOccurrence{
		occurrence("s2", "g1", now.Add(48*time.Hour), "20"),
		occurrence("s1", "g1", now, "20"),
	})
	groupTarget, _ := NewGroupTarget(group)
	court, _ := NewCourtTarget(CourtSelection{SlotIDs: []string{"slot-1"}, Price: decimal.NewFromInt(40)})
	event, _ := NewEventTarget(EventSelection{EventID: "e1", Fee: decimal.NewFromInt(30)})
	repl, _ := NewReplacementTarget(ReplacementSession{SessionID: "s9", Amount: decimal.NewFromInt(25)})
	voucher := &Voucher{ID: "red-1", DiscountType: DiscountFixed, DiscountValue: decimal.NewFromInt(5)}

	t.Run("one shape per target", func(t *testing.T) {
		intent, err := BuildIntent(class, EquipmentSelection{}, FundingWallet, nil)
		require.NoError(t, err)
		assert.IsType(t, ClassSessionIntent{}, intent)

		intent, err = BuildIntent(groupTarget, EquipmentSelection{NumPaddles: 1}, FundingCard, nil)
		require.NoError(t, err)
		gi, ok := intent.(GroupSessionIntent)
		require.True(t, ok)
		assert.Equal(t, []string{"s1", "s2"}, gi.SessionIDs)

		intent, err = BuildIntent(court, EquipmentSelection{}, FundingWallet, voucher)
		require.NoError(t, err)
		ci, ok := intent.(CourtBookingIntent)
		require.True(t, ok)
		assert.True(t, ci.UsesVoucher())
		assert.Equal(t, "red-1", ci.VoucherRedemptionID)

		intent, err = BuildIntent(event, EquipmentSelection{}, FundingCard, nil)
		require.NoError(t, err)
		assert.Equal(t, TargetEvent, intent.Kind())

		intent, err = BuildIntent(repl, EquipmentSelection{}, FundingWallet, nil)
		require.NoError(t, err)
		assert.Equal(t, TargetReplacement, intent.Kind())
	})

	t.Run("fresh id per build", func(t *testing.T) {
		a, err := BuildIntent(class, EquipmentSelection{}, FundingWallet, nil)
		require.NoError(t, err)
		b, err := BuildIntent(class, EquipmentSelection{}, FundingWallet, nil)
		require.NoError(t, err)
		assert.NotEqual(t, a.IntentID(), b.IntentID())
	})

	t.Run("rejections", func(t *testing.T) {
		intent, err := BuildIntent(class, EquipmentSelection{}, FundingWallet, voucher)
		assert.ErrorIs(t, err, ErrVoucherNotApplicable)
		assert.Nil(t, intent)

		_, err = BuildIntent(event, EquipmentSelection{BuyBallSet: true}, FundingCard, nil)
		assert.ErrorIs(t, err, ErrEquipmentNotApplicable)

		intent, err = BuildIntent(class, EquipmentSelection{}, "", nil)
		assert.ErrorIs(t, err, ErrFundingMethodRequired)
		assert.Nil(t, intent)
	})
}

func TestParseFundingMethod(t *testing.T) {
	m, err := ParseFundingMethod("wallet")
	require.NoError(t, err)
	assert.Equal(t, FundingWallet, m)

	_, err = ParseFundingMethod("")
	assert.ErrorIs(t, err, ErrFundingMethodRequired)

	_, err = ParseFundingMethod("crypto")
	assert.ErrorIs(t, err, ErrInvalidFundingMethod)
}

func TestVoucher(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	v := Voucher{ID: "v1", DiscountType: DiscountPercentage, DiscountValue: decimal.NewFromInt(10), ExpiryDate: &past}

	assert.NoError(t, v.Validate())
	assert.True(t, v.IsExpired(now))

	v.ExpiryDate = nil
	assert.False(t, v.IsExpired(now))

	v.DiscountType = "BOGO"
	assert.ErrorIs(t, v.Validate(), ErrInvalidVoucher)

	found, ok := FindVoucher([]Voucher{{ID: "a"}, {ID: "b"}}, "b")
	assert.True(t, ok)
	assert.Equal(t, "b", found.ID)
}

func newTestCheckout(t *testing.T, wallet *decimal.Decimal) *Checkout {
	t.Helper()
	target, err := NewClassSessionTarget(occurrence("s1", "", time.Now().Add(24*time.Hour), "20"))
	require.NoError(t, err)
	c, err := NewCheckout("42", target, EquipmentSelection{}, wallet, nil, "MYR", time.Now(), 30*time.Minute)
	require.NoError(t, err)
	return c
}

func TestNewCheckout_DefaultMethod(t *testing.T) {
	balance := decimal.NewFromInt(100)
	assert.Equal(t, FundingWallet, newTestCheckout(t, &balance).Method)
	assert.Equal(t, FundingCard, newTestCheckout(t, nil).Method)

	target, _ := NewClassSessionTarget(occurrence("s1", "", time.Now(), "20"))
	_, err := NewCheckout("", target, EquipmentSelection{}, nil, nil, "MYR", time.Now(), time.Minute)
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestCheckout_Transitions(t *testing.T) {
	now := time.Now()

	t.Run("success path", func(t *testing.T) {
		c := newTestCheckout(t, nil)
		require.NoError(t, c.BeginValidation(now))
		require.NoError(t, c.BeginSubmission("intent-1", now))
		assert.Equal(t, 1, c.Attempts)
		require.NoError(t, c.Succeed(BookingResult{TotalAmount: decimal.NewFromInt(20)}, now))

		assert.True(t, c.IsTerminal())
		assert.ErrorIs(t, c.BeginValidation(now), ErrAlreadySubmitted)
	})

	t.Run("recoverable failure allows retry", func(t *testing.T) {
		c := newTestCheckout(t, nil)
		require.NoError(t, c.BeginValidation(now))
		require.NoError(t, c.FailRecoverable(ReasonWalletInsufficient, "top up", now))
		assert.True(t, c.IsEditable())
		require.NoError(t, c.BeginValidation(now))
		assert.Equal(t, CheckoutValidating, c.State)
	})

	t.Run("in flight blocks", func(t *testing.T) {
		c := newTestCheckout(t, nil)
		require.NoError(t, c.BeginValidation(now))
		require.NoError(t, c.BeginSubmission("intent-1", now))
		assert.ErrorIs(t, c.BeginValidation(now), ErrSubmissionInProgress)
		assert.False(t, c.IsEditable())
	})

	t.Run("cancel resumes previous state", func(t *testing.T) {
		c := newTestCheckout(t, nil)
		require.NoError(t, c.BeginValidation(now))
		require.NoError(t, c.FailRecoverable(ReasonSessionUnavailable, "gone", now))
		require.NoError(t, c.BeginValidation(now))
		require.NoError(t, c.BeginSubmission("intent-2", now))
		require.NoError(t, c.CancelSubmission(now))
		assert.Equal(t, CheckoutFailedRecoverable, c.State)
		assert.Empty(t, c.IntentID)
		assert.Nil(t, c.Result)
	})

	t.Run("abort validation", func(t *testing.T) {
		c := newTestCheckout(t, nil)
		require.NoError(t, c.BeginValidation(now))
		require.NoError(t, c.AbortValidation(now))
		assert.Equal(t, CheckoutIdle, c.State)
		assert.ErrorIs(t, c.AbortValidation(now), ErrInvalidTransition)
	})

	t.Run("fatal is terminal", func(t *testing.T) {
		c := newTestCheckout(t, nil)
		require.NoError(t, c.BeginValidation(now))
		require.NoError(t, c.BeginSubmission("intent-1", now))
		require.NoError(t, c.FailFatal(ReasonBackendError, "boom", now))
		assert.True(t, c.IsTerminal())
		assert.ErrorIs(t, c.BeginValidation(now), ErrCheckoutClosed)
		assert.ErrorIs(t, c.Succeed(BookingResult{}, now), ErrInvalidTransition)
	})
}

func TestCheckout_IsExpired(t *testing.T) {
	c := newTestCheckout(t, nil)
	assert.False(t, c.IsExpired(c.CreatedAt.Add(time.Minute)))
	assert.True(t, c.IsExpired(c.ExpiresAt.Add(time.Second)))
}

func TestNewCheckoutEvent(t *testing.T) {
	now := time.Now()
	c := newTestCheckout(t, nil)

	_, ok := NewCheckoutEvent(c, "evt-1", now)
	assert.False(t, ok)

	require.NoError(t, c.BeginValidation(now))
	require.NoError(t, c.BeginSubmission("intent-1", now))
	require.NoError(t, c.Succeed(BookingResult{TotalAmount: decimal.NewFromInt(18)}, now))

	event, ok := NewCheckoutEvent(c, "evt-1", now)
	require.True(t, ok)
	assert.Equal(t, CheckoutEventSucceeded, event.EventType)
	assert.Equal(t, []string{"s1"}, event.SessionIDs)
	require.NotNil(t, event.PaidTotal)
	assert.True(t, event.PaidTotal.Equal(decimal.NewFromInt(18)))
}

func TestEligibilityState(t *testing.T) {
	assert.True(t, EligibilityBookable.CanBook())
	assert.NoError(t, EligibilityBookable.Err())
	assert.ErrorIs(t, EligibilityAlreadyBooked.Err(), ErrAlreadyBooked)
	assert.ErrorIs(t, EligibilityFull.Err(), ErrGroupFull)
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsNotFoundError(ErrCheckoutNotFound))
	assert.True(t, IsValidationError(ErrVoucherRequired))
	assert.True(t, IsConflictError(ErrSubmissionInProgress))
	assert.True(t, IsExpiredError(ErrCheckoutExpired))
	assert.False(t, IsValidationError(ErrCheckoutNotFound))
}
