package database

import (
	"errors"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

var errEmptySeatSet = errors.New("seat lock requires at least one seat number")

// rebinder converts '?' placeholders into the driver's bind type
type rebinder interface {
	Rebind(query string) string
}

const lockedSeatColumns = `id, seat_no, status, booking_reference`

// SeatLockQuery describes the set of seat rows a transaction must lock.
//
// All callers lock through this type so that rows are always acquired in
// the same byte order of seat_no; Go's sort.Strings and COLLATE "C" agree.
type SeatLockQuery struct {
	TravelOptionID int64
	SeatNumbers    []string
}

// Normalize trims, de-duplicates and sorts the seat numbers
func (q SeatLockQuery) Normalize() SeatLockQuery {
	seen := make(map[string]bool, len(q.SeatNumbers))
	seats := make([]string, 0, len(q.SeatNumbers))
	for _, s := range q.SeatNumbers {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		seats = append(seats, s)
	}
	sort.Strings(seats)
	return SeatLockQuery{TravelOptionID: q.TravelOptionID, SeatNumbers: seats}
}

// ForUpdate builds the locking SELECT for exactly the requested rows
func (q SeatLockQuery) ForUpdate(r rebinder) (string, []interface{}, error) {
	n := q.Normalize()
	if len(n.SeatNumbers) == 0 {
		return "", nil, errEmptySeatSet
	}
	query, args, err := sqlx.In(`
		SELECT `+lockedSeatColumns+`
		FROM seats
		WHERE travel_option_id = ? AND seat_no IN (?)
		ORDER BY seat_no COLLATE "C"
		FOR UPDATE`,
		n.TravelOptionID, n.SeatNumbers)
	if err != nil {
		return "", nil, err
	}
	return r.Rebind(query), args, nil
}

// AllForUpdate locks every seat of the travel option, in the same order
func (q SeatLockQuery) AllForUpdate(r rebinder) (string, []interface{}) {
	return r.Rebind(`
		SELECT ` + lockedSeatColumns + `
		FROM seats
		WHERE travel_option_id = ?
		ORDER BY seat_no COLLATE "C"
		FOR UPDATE`), []interface{}{q.TravelOptionID}
}
