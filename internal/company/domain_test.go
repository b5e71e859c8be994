package company

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveCode(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Sharma Traders", "SHA"},
		{"A1 Mart", "A1M"},
		{"  élan Café  ", "ELA"},
		{"7-Eleven", "7EL"},
		{"Ab", "ABX"},
		{"!!", "XXX"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, DeriveCode(tc.name), "name %q", tc.name)
	}
}
