package notify

import "context"

// Multi fans a notification out to every wrapped Notifier in order.
type Multi []Notifier

func (m Multi) NotifySuccess(ctx context.Context, n Notice) {
	for _, x := range m {
		if x != nil {
			x.NotifySuccess(ctx, n)
		}
	}
}

func (m Multi) NotifyFailure(ctx context.Context, n Notice, reason string) {
	for _, x := range m {
		if x != nil {
			x.NotifyFailure(ctx, n, reason)
		}
	}
}
