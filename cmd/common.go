package cmd

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"strconv"

	"github.com/spf13/afero"

	"github.com/example/gym-sniper/internal/attempt"
	"github.com/example/gym-sniper/internal/clock"
	"github.com/example/gym-sniper/internal/config"
	"github.com/example/gym-sniper/internal/db"
	"github.com/example/gym-sniper/internal/history"
	"github.com/example/gym-sniper/internal/logger"
	"github.com/example/gym-sniper/internal/migrate"
	"github.com/example/gym-sniper/internal/notify"
	"github.com/example/gym-sniper/internal/perfectgym"
	"github.com/example/gym-sniper/internal/queue"
	"github.com/example/gym-sniper/internal/session"
)

type globalOptions struct {
	configPath *string
}

// app is everything a command needs once the config is loaded.
type app struct {
	cfg    config.Config
	log    logger.Logger
	fs     afero.Fs
	clock  clock.Clock
	client *perfectgym.Client
}

func newApp(opts *globalOptions) (*app, error) {
	cfg, err := config.Load(*opts.configPath)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:   cfg,
		log:   logger.New(os.Stderr, ""),
		fs:    afero.NewOsFs(),
		clock: clock.Real{},
	}

	clientOpts := []perfectgym.Option{perfectgym.WithLogger(a.log)}
	if store, err := a.sessionStore(); err != nil {
		a.log.Warning("session token will not be reused: %v", err)
	} else {
		clientOpts = append(clientOpts, perfectgym.WithTokenStore(store))
	}
	a.client = perfectgym.New(cfg.PerfectGym(), clientOpts...)
	return a, nil
}

func (a *app) sessionStore() (*session.Store, error) {
	secret, err := a.cfg.SessionSecret()
	if err != nil {
		return nil, err
	}
	return session.NewStore(a.fs, a.cfg.Session.File, secret)
}

func (a *app) openQueue() (*queue.Queue, error) {
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	q, err := queue.Open(a.fs, a.cfg.QueueFile, queue.WithLocation(loc), queue.WithClock(a.clock))
	if err != nil {
		return nil, err
	}
	if err := q.Load(); err != nil {
		return nil, err
	}
	return q, nil
}

// notifier builds the delivery chain and starts its dispatcher. The returned
// func flushes pending notifications.
func (a *app) notifier(ctx context.Context) (notify.Notifier, func()) {
	chain := notify.Multi{notify.Log{Logger: a.log}}
	if ec, ok := a.cfg.EmailConfig(); ok {
		chain = append(chain, notify.NewEmail(ec, smtp.SendMail, a.log))
	}
	if pc, ok := a.cfg.PushConfig(); ok {
		chain = append(chain, notify.NewWebPush(pc, notify.WebPushSender{}, a.log))
	}
	d := notify.NewDispatcher(2, chain, a.log)
	d.Start(ctx)
	return d, d.Close
}

func (a *app) attemptLoop(n notify.Notifier) *attempt.Loop {
	l := attempt.New(a.client, n, a.clock, a.log)
	a.cfg.ApplyAttempts(l)
	return l
}

// openHistory connects to DATABASE_URL when configured. Without one it
// returns a nil repo and a no-op close.
func (a *app) openHistory(ctx context.Context, migrateUp bool) (*history.Repo, func(), error) {
	if a.cfg.Database.URL == "" {
		return nil, func() {}, nil
	}
	d, err := db.Open(ctx, a.cfg.Database.URL, a.cfg.DBOptions())
	if err != nil {
		return nil, nil, err
	}
	if migrateUp {
		applied, err := migrate.Up(ctx, d)
		if err != nil {
			d.Close()
			return nil, nil, err
		}
		for _, v := range applied {
			a.log.Info("applied migration %s on %s", v, d)
		}
	}
	return history.NewRepo(d), d.Close, nil
}

func parseClassID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid class id %q", s)
	}
	return id, nil
}
