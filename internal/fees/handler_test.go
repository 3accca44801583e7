package fees

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmountCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"150.00", 15000, true},
		{"150", 15000, true},
		{"0.05", 5, true},
		{"99.9", 9990, true},
		{" 12.34 ", 1234, true},
		{"", 0, false},
		{"-5", 0, false},
		{"12.345", 0, false},
		{"12.", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, err := parseAmountCents(tc.in)
		if !tc.ok {
			require.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}
