package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/lib/pq"
)

// SeatNumbers is the TEXT[] list of seat numbers held by a booking.
//
// Scan is lenient: legacy rows may hold a JSON array or a comma separated
// string, and anything that cannot be decoded scans as an empty list.
type SeatNumbers []string

// Value implements the driver.Valuer interface
func (a SeatNumbers) Value() (driver.Value, error) {
	if a == nil {
		return pq.StringArray{}.Value()
	}
	return pq.StringArray(a).Value()
}

// Scan implements the sql.Scanner interface
func (a *SeatNumbers) Scan(src interface{}) error {
	*a = DecodeSeatNumbers(src)
	return nil
}

// DecodeSeatNumbers decodes a stored seat list, returning nil when malformed
func DecodeSeatNumbers(src interface{}) SeatNumbers {
	var raw string
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	case []string:
		return cleanSeatNumbers(v)
	default:
		return nil
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	switch raw[0] {
	case '{':
		var arr pq.StringArray
		if err := arr.Scan(raw); err != nil {
			return nil
		}
		return cleanSeatNumbers(arr)
	case '[':
		var arr []string
		if err := json.Unmarshal([]byte(raw), &arr); err != nil {
			return nil
		}
		return cleanSeatNumbers(arr)
	default:
		return cleanSeatNumbers(strings.Split(raw, ","))
	}
}

func cleanSeatNumbers(in []string) SeatNumbers {
	out := make(SeatNumbers, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
