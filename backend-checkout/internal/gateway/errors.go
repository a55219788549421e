package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrBackendUnavailable is returned when the booking backend cannot be reached
var ErrBackendUnavailable = errors.New("booking backend unavailable")

// BackendError is a non-2xx answer from the booking backend. Message is the
// backend's own text and is surfaced to the member unchanged.
type BackendError struct {
	Status  int
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("booking backend %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("booking backend %d: %s", e.Status, e.Message)
}

// AsBackendError extracts a BackendError from err
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

var (
	insufficientBalancePhrases = []string{"insufficient wallet balance", "insufficient balance", "insufficient funds"}
	alreadyRegisteredPhrases   = []string{"already registered", "already booked", "already joined"}
	unavailablePhrases         = []string{"no longer available", "not available", "unavailable", "is full", "fully booked", "capacity", "slot taken", "already taken"}
)

// IsInsufficientBalance reports a wallet balance rejected by the backend
func IsInsufficientBalance(err error) bool {
	be, ok := AsBackendError(err)
	if !ok {
		return false
	}
	return be.Status == http.StatusPaymentRequired ||
		codeIs(be, "INSUFFICIENT_BALANCE", "INSUFFICIENT_FUNDS", "WALLET_INSUFFICIENT") ||
		clientMessageHas(be, insufficientBalancePhrases)
}

// IsAlreadyRegistered reports a duplicate registration
func IsAlreadyRegistered(err error) bool {
	be, ok := AsBackendError(err)
	if !ok {
		return false
	}
	return codeIs(be, "ALREADY_REGISTERED", "ALREADY_BOOKED") || clientMessageHas(be, alreadyRegisteredPhrases)
}

// IsSessionUnavailable reports a session or slot lost to a concurrent booking.
// A 5xx is never one, whatever its text says.
func IsSessionUnavailable(err error) bool {
	be, ok := AsBackendError(err)
	if !ok {
		return false
	}
	if IsAlreadyRegistered(err) {
		return false
	}
	return be.Status == http.StatusGone ||
		codeIs(be, "SESSION_FULL", "SESSION_UNAVAILABLE", "SLOT_UNAVAILABLE") ||
		clientMessageHas(be, unavailablePhrases)
}

// IsUnauthorized reports an expired or rejected credential
func IsUnauthorized(err error) bool {
	be, ok := AsBackendError(err)
	return ok && (be.Status == http.StatusUnauthorized || be.Status == http.StatusForbidden)
}

func codeIs(be *BackendError, codes ...string) bool {
	for _, c := range codes {
		if strings.EqualFold(be.Code, c) {
			return true
		}
	}
	return false
}

// clientMessageHas matches phrases only in 4xx answers; server failures carry
// generic status text such as "Service Unavailable"
func clientMessageHas(be *BackendError, phrases []string) bool {
	if be.Status < http.StatusBadRequest || be.Status >= http.StatusInternalServerError {
		return false
	}
	msg := strings.ToLower(be.Message)
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// decodeBackendError reads the error body. The backend answers with
// {"message"}, {"error":"..."} or {"error":{"code","message"}} depending on
// the endpoint.
func decodeBackendError(status int, body []byte) *BackendError {
	be := &BackendError{Status: status}

	var payload struct {
		Message string          `json:"message"`
		Code    string          `json:"code"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		be.Message = strings.TrimSpace(string(body))
		if be.Message == "" {
			be.Message = http.StatusText(status)
		}
		return be
	}

	be.Message, be.Code = payload.Message, payload.Code
	if len(payload.Error) > 0 {
		var text string
		var nested struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		switch {
		case json.Unmarshal(payload.Error, &text) == nil:
			if be.Message == "" {
				be.Message = text
			}
		case json.Unmarshal(payload.Error, &nested) == nil:
			if be.Message == "" {
				be.Message = nested.Message
			}
			if be.Code == "" {
				be.Code = nested.Code
			}
		}
	}
	if be.Message == "" {
		be.Message = http.StatusText(status)
	}
	return be
}
