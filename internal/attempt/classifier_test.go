package attempt

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/gym-sniper/internal/booking"
)

func TestClassifyText(t *testing.T) {
	tests := []struct {
		text string
		want Class
	}{
		{`{"errors":[{"code":"DailyBookingLimitReached"}]}`, PermanentStop},
		{"TooSoonToBook", NotYetOpen},
		{"You are already booked", AlreadyDone},
		{"Already on waitlist", AlreadyDone},
		{"Class is Full", CapacityFull},
		{"class full", CapacityFull},
		{"Awaitable", CapacityFull},
		{"internal server error", Unknown},
		{"", Unknown},
		// Precedence: daily limit wins over anything else in the text.
		{"DailyBookingLimitReached: already full", PermanentStop},
		{"TooSoonToBook Full", NotYetOpen},
		// Tokens are case sensitive.
		{"TOOSOONTOBOOK", Unknown},
		{"FULL", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyText(tt.text))
		})
	}
}

func TestClassifyUsesVendorText(t *testing.T) {
	err := fmt.Errorf("reserve: %w", &booking.ReservationError{StatusCode: 400, Text: "TooSoonToBook"})
	assert.Equal(t, NotYetOpen, Classify(err))
	assert.Equal(t, AlreadyDone, Classify(errors.New("already booked")))
	assert.Equal(t, Unknown, Classify(nil))
}

func TestClassRetryable(t *testing.T) {
	assert.False(t, PermanentStop.Retryable())
	assert.False(t, AlreadyDone.Retryable())
	assert.True(t, NotYetOpen.Retryable())
	assert.True(t, CapacityFull.Retryable())
	assert.True(t, Unknown.Retryable())
	assert.Equal(t, "capacity-full", CapacityFull.String())
}
