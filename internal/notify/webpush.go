package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/example/gym-sniper/internal/logger"
)

// PushSender sends one web push message.
type PushSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender sends through the webpush library.
type WebPushSender struct{}

func (WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// PushConfig holds the VAPID keys and the subscriptions to notify.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
	Subscriptions   []webpush.Subscription
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WebPush notifies every configured browser subscription.
type WebPush struct {
	cfg    PushConfig
	sender PushSender
	log    logger.Logger
}

func NewWebPush(cfg PushConfig, sender PushSender, l logger.Logger) *WebPush {
	if sender == nil {
		sender = WebPushSender{}
	}
	if cfg.TTL == 0 {
		cfg.TTL = 3600
	}
	return &WebPush{cfg: cfg, sender: sender, log: logger.OrNop(l)}
}

func (w *WebPush) NotifySuccess(_ context.Context, n Notice) {
	w.broadcast(pushPayload{
		Title: "Booked: " + n.Name,
		Body:  fmt.Sprintf("%s with %s", n.Time.Format(TimeLayout), n.TrainerOrDefault()),
	})
}

func (w *WebPush) NotifyFailure(_ context.Context, n Notice, reason string) {
	w.broadcast(pushPayload{
		Title: "Booking failed: " + n.Name,
		Body:  fmt.Sprintf("%s: %s", n.Time.Format(TimeLayout), reason),
	})
}

func (w *WebPush) broadcast(p pushPayload) {
	payload, err := json.Marshal(p)
	if err != nil {
		w.log.Error("push: encode payload: %v", err)
		return
	}
	opts := &webpush.Options{
		Subscriber:      w.cfg.Subscriber,
		VAPIDPublicKey:  w.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: w.cfg.VAPIDPrivateKey,
		TTL:             w.cfg.TTL,
	}
	for i := range w.cfg.Subscriptions {
		sub := &w.cfg.Subscriptions[i]
		resp, err := w.sender.Send(payload, sub, opts)
		if err != nil {
			w.log.Error("push: send to %s: %v", sub.Endpoint, err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusGone {
			w.log.Warning("push: subscription %s expired", sub.Endpoint)
		} else if resp.StatusCode >= 300 {
			w.log.Warning("push: %s returned %d", sub.Endpoint, resp.StatusCode)
		}
	}
}
