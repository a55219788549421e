package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// UserID is a user identifier normalized at ingestion. The booking backend
// returns ids as JSON numbers on some endpoints and strings on others, so
// integer-valued ids are canonicalized to their base-10 form ("007" and 7
// both become "7") and anything else is kept as trimmed text.
type UserID string

// NormalizeUserID canonicalizes a raw id taken from a token, a path or a payload.
func NormalizeUserID(raw string) UserID {
	s := strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return UserID(strconv.FormatInt(n, 10))
	}
	return UserID(s)
}

// String implements fmt.Stringer
func (u UserID) String() string {
	return string(u)
}

// IsZero reports whether the id is empty
func (u UserID) IsZero() bool {
	return u == ""
}

// UnmarshalJSON accepts a JSON string or number.
func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = NormalizeUserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return ErrInvalidUserID
	}
	if i, err := n.Int64(); err == nil {
		*u = UserID(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return ErrInvalidUserID
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		*u = UserID(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*u = UserID(n.String())
	return nil
}
