package models

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatNoLess(t *testing.T) {
	seats := []string{"10A", "2B", "1B", "2A", "W1", "1A"}
	sort.Slice(seats, func(i, j int) bool { return SeatNoLess(seats[i], seats[j]) })
	assert.Equal(t, []string{"W1", "1A", "1B", "2A", "2B", "10A"}, seats)
}

func TestDecodeSeatNumbers(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		want SeatNumbers
	}{
		{"postgres array", []byte(`{2A,2B}`), SeatNumbers{"2A", "2B"}},
		{"json array", `["1A", " 1B "]`, SeatNumbers{"1A", "1B"}},
		{"comma separated", "3C,3D", SeatNumbers{"3C", "3D"}},
		{"nil", nil, nil},
		{"empty array", []byte(`{}`), nil},
		{"blank", "   ", nil},
		{"malformed json", `["1A",`, nil},
		{"unsupported type", 12, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeSeatNumbers(tt.src))
		})
	}
}

func TestSeatNumbers_ValueScan(t *testing.T) {
	v, err := SeatNumbers{"2A", "2B"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"2A","2B"}`, v)

	var decoded SeatNumbers
	require.NoError(t, decoded.Scan([]byte(v.(string))))
	assert.Equal(t, SeatNumbers{"2A", "2B"}, decoded)

	empty, err := SeatNumbers(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", empty)
}
