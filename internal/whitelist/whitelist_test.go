package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestChecker(t *testing.T) {
	c := NewChecker([]string{"Dispatch@MyCarrier.com", " ops.example.org ", ""}, zap.NewNop())

	tests := []struct {
		from string
		want bool
	}{
		{from: "dispatch@mycarrier.com", want: true},
		{from: "Dispatch Desk <DISPATCH@mycarrier.com>", want: true},
		{from: "sales@mycarrier.com", want: false},
		{from: "Someone <a@ops.example.org>", want: true},
		{from: "a@sub.ops.example.org", want: false},
		{from: "broken <x@ops.example.org", want: true},
		{from: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Ignores(tt.from))
		})
	}
}

func TestEmptyChecker(t *testing.T) {
	c := NewChecker(nil, nil)
	assert.False(t, c.Ignores("anyone@example.com"))
}
