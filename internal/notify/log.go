package notify

import (
	"context"

	"github.com/example/gym-sniper/internal/logger"
)

// Log writes outcomes to a logger. It is always part of the notifier chain so
// an outcome is never silent.
type Log struct {
	Logger logger.Logger
}

func (l Log) NotifySuccess(_ context.Context, n Notice) {
	logger.OrNop(l.Logger).Info("booked %s at %s (trainer: %s)", n.Name, n.Time.Format(TimeLayout), n.TrainerOrDefault())
}

func (l Log) NotifyFailure(_ context.Context, n Notice, reason string) {
	logger.OrNop(l.Logger).Error("failed to book %s at %s: %s", n.Name, n.Time.Format(TimeLayout), reason)
}
