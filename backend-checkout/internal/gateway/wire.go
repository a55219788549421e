package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prohmpiriya/class-checkout/backend-checkout/internal/domain"
)

// flexID accepts ids sent as JSON strings or numbers
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// flexTime accepts RFC 3339 timestamps and plain dates
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unsupported time %q", s)
}

type registrationPayload struct {
	RegistrationID flexID        `json:"registrationId"`
	ID             flexID        `json:"id"`
	UserID         domain.UserID `json:"userId"`
	MemberName     string        `json:"memberName"`
}

type sessionPayload struct {
	ID                  flexID                `json:"id"`
	RecurringGroupID    flexID                `json:"recurringGroupId"`
	CoachID             flexID                `json:"coachId"`
	CoachName           string                `json:"coachName"`
	VenueName           string                `json:"venueName"`
	VenueState          string                `json:"venueState"`
	CourtName           string                `json:"courtName"`
	Title               string                `json:"title"`
	Type                string                `json:"type"`
	StartTime           flexTime              `json:"startTime"`
	EndTime             flexTime              `json:"endTime"`
	Price               decimal.Decimal       `json:"price"`
	Status              string                `json:"status"`
	CurrentParticipants int                   `json:"currentParticipants"`
	MaxParticipants     int                   `json:"maxParticipants"`
	Registrations       []registrationPayload `json:"registrations"`
}

func (p sessionPayload) toDomain() domain.ClassSessionOccurrence {
	regs := make([]domain.Registration, 0, len(p.Registrations))
	for _, r := range p.Registrations {
		id := r.RegistrationID
		if id == "" {
			id = r.ID
		}
		regs = append(regs, domain.Registration{
			RegistrationID: string(id),
			UserID:         r.UserID,
			MemberName:     r.MemberName,
		})
	}
	return domain.ClassSessionOccurrence{
		ID:                  string(p.ID),
		RecurringGroupID:    string(p.RecurringGroupID),
		CoachID:             string(p.CoachID),
		CoachName:           p.CoachName,
		VenueName:           p.VenueName,
		VenueState:          p.VenueState,
		CourtName:           p.CourtName,
		Title:               p.Title,
		Type:                p.Type,
		StartTime:           p.StartTime.Time,
		EndTime:             p.EndTime.Time,
		Price:               p.Price,
		Status:              domain.SessionStatus(strings.ToUpper(p.Status)),
		CurrentParticipants: p.CurrentParticipants,
		MaxParticipants:     p.MaxParticipants,
		Registrations:       regs,
	}
}

type voucherPayload struct {
	ID            flexID          `json:"id"`
	RedemptionID  flexID          `json:"redemptionId"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	DiscountType  string          `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	ExpiryDate    *flexTime       `json:"expiryDate"`
}

func (p voucherPayload) toDomain() domain.Voucher {
	id := p.RedemptionID
	if id == "" {
		id = p.ID
	}
	v := domain.Voucher{
		ID:            string(id),
		Code:          p.Code,
		Name:          p.Name,
		DiscountType:  domain.DiscountType(strings.ToUpper(p.DiscountType)),
		DiscountValue: p.DiscountValue,
	}
	if p.ExpiryDate != nil && !p.ExpiryDate.IsZero() {
		expiry := p.ExpiryDate.Time
		v.ExpiryDate = &expiry
	}
	return v
}

type balancePayload struct {
	Balance decimal.Decimal `json:"balance"`
}

type resultPayload struct {
	ID                        flexID              `json:"id"`
	BookingID                 flexID              `json:"bookingId"`
	RegistrationID            flexID              `json:"registrationId"`
	RegistrationIDs           []flexID            `json:"registrationIds"`
	TotalAmount               decimal.NullDecimal `json:"totalAmount"`
	Amount                    decimal.NullDecimal `json:"amount"`
	Fee                       decimal.NullDecimal `json:"fee"`
	PointsEarned              float64             `json:"pointsEarned"`
	CurrentTierPointBalance   float64             `json:"currentTierPointBalance"`
	CurrentRewardPointBalance float64             `json:"currentRewardPointBalance"`
	Message                   string              `json:"message"`
}

func (p resultPayload) toDomain() *domain.BookingResult {
	r := &domain.BookingResult{
		PointsEarned:              int64(p.PointsEarned),
		CurrentTierPointBalance:   int64(p.CurrentTierPointBalance),
		CurrentRewardPointBalance: int64(p.CurrentRewardPointBalance),
		Message:                   p.Message,
	}
	for _, id := range []flexID{p.BookingID, p.RegistrationID, p.ID} {
		if id != "" {
			r.BookingID = string(id)
			break
		}
	}
	for _, id := range p.RegistrationIDs {
		r.RegistrationIDs = append(r.RegistrationIDs, string(id))
	}
	for _, amount := range []decimal.NullDecimal{p.TotalAmount, p.Amount, p.Fee} {
		if amount.Valid {
			r.TotalAmount = amount.Decimal
			break
		}
	}
	return r
}

// decodeData decodes a payload that may or may not be wrapped in a
// {"success":..,"data":..} envelope.
func decodeData(body []byte, out interface{}) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 && !bytes.Equal(envelope.Data, []byte("null")) {
		body = envelope.Data
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode backend response: %w", err)
	}
	return nil
}
