package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/example/gym-sniper/internal/attempt"
	"github.com/example/gym-sniper/internal/credstore"
	"github.com/example/gym-sniper/internal/daemon"
	"github.com/example/gym-sniper/internal/db"
	"github.com/example/gym-sniper/internal/notify"
	"github.com/example/gym-sniper/internal/perfectgym"
	"github.com/example/gym-sniper/internal/scheduler"
	"github.com/example/gym-sniper/internal/snipe"
)

const (
	DefaultPath      = "config.toml"
	defaultQueueFile = "snipes.json"
	defaultSession   = ".gym-sniper-session"
)

// Config mirrors config.toml. Environment variables override the file.
type Config struct {
	QueueFile   string      `toml:"queue_file"`
	Gym         Gym         `toml:"gym"`
	Credentials Credentials `toml:"credentials"`
	Targets     []Target    `toml:"targets"`
	Email       *Email      `toml:"email"`
	Push        *Push       `toml:"push"`
	Snipe       Snipe       `toml:"snipe"`
	Database    Database    `toml:"database"`
	Session     Session     `toml:"session"`
}

type Gym struct {
	BaseURL           string  `toml:"base_url"`
	ClubID            int     `toml:"club_id"`
	Timezone          string  `toml:"timezone"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

type Credentials struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
}

type Target struct {
	ClassName string   `toml:"class_name"`
	Days      []string `toml:"days"`
	Time      string   `toml:"time"`
}

type Email struct {
	SMTPServer string `toml:"smtp_server"`
	SMTPPort   int    `toml:"smtp_port"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	From       string `toml:"from"`
	To         string `toml:"to"`
}

type Push struct {
	VAPIDPublicKey  string             `toml:"vapid_public_key"`
	VAPIDPrivateKey string             `toml:"vapid_private_key"`
	Subscriber      string             `toml:"subscriber"`
	TTL             int                `toml:"ttl"`
	Subscriptions   []PushSubscription `toml:"subscriptions"`
}

type PushSubscription struct {
	Endpoint string `toml:"endpoint"`
	P256dh   string `toml:"p256dh"`
	Auth     string `toml:"auth"`
}

// Snipe holds the timing knobs. Zero values fall back to the built-in
// defaults.
type Snipe struct {
	NearThresholdSeconds int         `toml:"near_threshold_seconds"`
	MaxChunkSeconds      int         `toml:"max_chunk_seconds"`
	PollJitterMillis     int         `toml:"poll_jitter_ms"`
	PollStages           []PollStage `toml:"poll_stages"`
	MaxAttempts          int         `toml:"max_attempts"`
	RetryDelayMillis     int         `toml:"retry_delay_ms"`
	EmptyPollSeconds     int         `toml:"empty_poll_seconds"`
	PauseSeconds         int         `toml:"pause_seconds"`
	MaxDeferrals         int         `toml:"max_deferrals"`
	ScheduleSeconds      int         `toml:"schedule_interval_seconds"`
}

type PollStage struct {
	WithinSeconds int `toml:"within_seconds"`
	EverySeconds  int `toml:"every_seconds"`
}

type Database struct {
	URL      string `toml:"url"`
	MaxConns int32  `toml:"max_conns"`
}

type Session struct {
	Secret string `toml:"secret"`
	File   string `toml:"file"`
}

// passwordLookup resolves a missing password from the OS keyring.
var passwordLookup = func(email string) (string, error) {
	return credstore.New().Get(email)
}

// Load reads an optional .env next to path, parses path as TOML and applies
// environment overrides. A missing password is looked up in the keyring.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %q: %w", path, err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Credentials.Password == "" && cfg.Credentials.Email != "" {
		pw, err := passwordLookup(cfg.Credentials.Email)
		if err != nil && !errors.Is(err, credstore.ErrNotFound) {
			return Config{}, fmt.Errorf("password lookup: %w", err)
		}
		cfg.Credentials.Password = pw
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes TOML without touching the environment.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	// existing environment wins
	_ = godotenv.Load(path)
}

func (c *Config) applyEnv() {
	c.Credentials.Email = getenv("GYM_EMAIL", c.Credentials.Email)
	c.Credentials.Password = getenv("GYM_PASSWORD", c.Credentials.Password)
	c.Database.URL = getenv("DATABASE_URL", c.Database.URL)
	c.Session.Secret = getenv("SESSION_SECRET", c.Session.Secret)
	c.QueueFile = getenv("SNIPER_QUEUE_FILE", c.QueueFile)
}

func (c *Config) applyDefaults() {
	c.Gym.BaseURL = strings.TrimRight(strings.TrimSpace(c.Gym.BaseURL), "/")
	if c.QueueFile == "" {
		c.QueueFile = defaultQueueFile
	}
	if c.Session.File == "" {
		c.Session.File = defaultSession
	}
	if c.Email != nil && c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
}

func (c Config) Validate() error {
	var problems []string
	if c.Gym.BaseURL == "" {
		problems = append(problems, "gym.base_url is required")
	}
	if c.Gym.ClubID <= 0 {
		problems = append(problems, "gym.club_id must be positive")
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Credentials.Email == "" {
		problems = append(problems, "credentials.email is required")
	}
	if c.Credentials.Password == "" {
		problems = append(problems, "credentials.password is not set (config, GYM_PASSWORD or keyring)")
	}
	for i, t := range c.Targets {
		if _, err := scheduler.NewTarget(t.ClassName, t.Days, t.Time); err != nil {
			problems = append(problems, fmt.Sprintf("targets[%d]: %v", i, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location is the gym's time zone, time.Local when unset.
func (c Config) Location() (*time.Location, error) {
	if c.Gym.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Gym.Timezone)
	if err != nil {
		return nil, fmt.Errorf("gym.timezone: %w", err)
	}
	return loc, nil
}

func (c Config) PerfectGym() perfectgym.Config {
	loc, err := c.Location()
	if err != nil {
		loc = time.Local
	}
	return perfectgym.Config{
		BaseURL:           c.Gym.BaseURL,
		ClubID:            c.Gym.ClubID,
		Email:             c.Credentials.Email,
		Password:          c.Credentials.Password,
		Location:          loc,
		Timeout:           seconds(c.Gym.TimeoutSeconds),
		RequestsPerSecond: c.Gym.RequestsPerSecond,
		Burst:             c.Gym.Burst,
	}
}

// EmailConfig reports false when no [email] section is present.
func (c Config) EmailConfig() (notify.EmailConfig, bool) {
	if c.Email == nil || c.Email.SMTPServer == "" {
		return notify.EmailConfig{}, false
	}
	return notify.EmailConfig{
		Server:   c.Email.SMTPServer,
		Port:     c.Email.SMTPPort,
		Username: c.Email.Username,
		Password: c.Email.Password,
		From:     c.Email.From,
		To:       c.Email.To,
	}, true
}

// PushConfig reports false unless keys and at least one subscription exist.
func (c Config) PushConfig() (notify.PushConfig, bool) {
	if c.Push == nil || c.Push.VAPIDPrivateKey == "" || len(c.Push.Subscriptions) == 0 {
		return notify.PushConfig{}, false
	}
	subs := make([]webpush.Subscription, 0, len(c.Push.Subscriptions))
	for _, s := range c.Push.Subscriptions {
		subs = append(subs, webpush.Subscription{
			Endpoint: s.Endpoint,
			Keys:     webpush.Keys{P256dh: s.P256dh, Auth: s.Auth},
		})
	}
	return notify.PushConfig{
		VAPIDPublicKey:  c.Push.VAPIDPublicKey,
		VAPIDPrivateKey: c.Push.VAPIDPrivateKey,
		Subscriber:      c.Push.Subscriber,
		TTL:             c.Push.TTL,
		Subscriptions:   subs,
	}, true
}

func (c Config) Timing() snipe.Timing {
	t := snipe.DefaultTiming()
	if c.Snipe.NearThresholdSeconds > 0 {
		t.NearThreshold = seconds(c.Snipe.NearThresholdSeconds)
	}
	if c.Snipe.MaxChunkSeconds > 0 {
		t.MaxChunk = seconds(c.Snipe.MaxChunkSeconds)
	}
	if len(c.Snipe.PollStages) > 0 {
		t.PollStages = t.PollStages[:0:0]
		for _, s := range c.Snipe.PollStages {
			if s.WithinSeconds <= 0 || s.EverySeconds <= 0 {
				continue
			}
			t.PollStages = append(t.PollStages, snipe.PollStage{
				Within: seconds(s.WithinSeconds),
				Every:  seconds(s.EverySeconds),
			})
		}
	}
	t.PollJitter = time.Duration(c.Snipe.PollJitterMillis) * time.Millisecond
	return t
}

// ApplyAttempts copies the retry budget onto l.
func (c Config) ApplyAttempts(l *attempt.Loop) {
	if c.Snipe.MaxAttempts > 0 {
		l.MaxAttempts = c.Snipe.MaxAttempts
	}
	if c.Snipe.RetryDelayMillis > 0 {
		l.Delay = time.Duration(c.Snipe.RetryDelayMillis) * time.Millisecond
	}
}

// DBOptions sizes the history pool; unset fields keep the db defaults.
func (c Config) DBOptions() db.Options {
	o := db.DefaultOptions()
	if c.Database.MaxConns > 0 {
		o.MaxConns = c.Database.MaxConns
	}
	return o
}

func (c Config) Daemon() daemon.Config {
	d := daemon.DefaultConfig()
	if c.Snipe.NearThresholdSeconds > 0 {
		d.NearThreshold = seconds(c.Snipe.NearThresholdSeconds)
	}
	if c.Snipe.EmptyPollSeconds > 0 {
		d.EmptyPoll = seconds(c.Snipe.EmptyPollSeconds)
	}
	if c.Snipe.PauseSeconds > 0 {
		d.Pause = seconds(c.Snipe.PauseSeconds)
	}
	if c.Snipe.MaxDeferrals > 0 {
		d.MaxDeferrals = c.Snipe.MaxDeferrals
	}
	return d
}

func (c Config) ScheduleInterval() time.Duration {
	if c.Snipe.ScheduleSeconds > 0 {
		return seconds(c.Snipe.ScheduleSeconds)
	}
	return scheduler.DefaultInterval
}

func (c Config) ScheduleTargets() ([]scheduler.Target, error) {
	out := make([]scheduler.Target, 0, len(c.Targets))
	for i, t := range c.Targets {
		tgt, err := scheduler.NewTarget(t.ClassName, t.Days, t.Time)
		if err != nil {
			return nil, fmt.Errorf("targets[%d]: %w", i, err)
		}
		out = append(out, tgt)
	}
	return out, nil
}

// SessionSecret decodes Session.Secret. Base64 is tried first; anything else
// is used as raw bytes. A value naming an existing file is read from disk.
func (c Config) SessionSecret() ([]byte, error) {
	s := strings.TrimSpace(c.Session.Secret)
	if s == "" {
		return nil, errors.New("SESSION_SECRET is not set (run `gymsniper keys`)")
	}
	if b, err := os.ReadFile(s); err == nil {
		// allow pointing to a mounted secret file
		s = strings.TrimSpace(string(b))
	}
	if dec, err := base64.StdEncoding.DecodeString(s); err == nil {
		return dec, nil
	}
	return []byte(s), nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
