// Package perfectgym is a client for the PerfectGym client portal API.
package perfectgym

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/example/gym-sniper/internal/booking"
	"github.com/example/gym-sniper/internal/logger"
)

const (
	userAgent  = "Mozilla/5.0 (X11; Linux x86_64; rv:146.0) Gecko/20100101 Firefox/146.0"
	timeLayout = "2006-01-02T15:04:05"
	tokenKey   = "session"
)

// Config describes one gym and the member logging in to it.
type Config struct {
	BaseURL  string
	ClubID   int
	Email    string
	Password string
	// Location is the gym's time zone. Vendor timestamps carry no offset.
	Location *time.Location
	Timeout  time.Duration
	// RequestsPerSecond and Burst bound the request rate. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// TokenTTL is how long a login is trusted before logging in again.
	TokenTTL time.Duration
}

// TokenStore persists a session between process runs.
type TokenStore interface {
	Load() (booking.Session, error)
	Save(booking.Session) error
}

type Client struct {
	hc      *http.Client
	cfg     Config
	limiter *rate.Limiter
	tokens  *cache.Cache
	store   TokenStore
	log     logger.Logger
	now     func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

func WithTokenStore(s TokenStore) Option { return func(c *Client) { c.store = s } }

func WithLogger(l logger.Logger) Option { return func(c *Client) { c.log = l } }

func New(cfg Config, opts ...Option) *Client {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		hc:     &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		tokens: cache.New(cfg.TokenTTL, 10*time.Minute),
		now:    time.Now,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, o := range opts {
		o(c)
	}
	c.log = logger.OrNop(c.log)
	return c
}

// Login authenticates and caches the session token.
func (c *Client) Login(ctx context.Context) (booking.Session, error) {
	body := loginRequest{RememberMe: true, Login: c.cfg.Email, Password: c.cfg.Password}
	status, header, resp, err := c.do(ctx, http.MethodPost, "/Auth/Login", nil, body, "")
	if err != nil {
		return booking.Session{}, &booking.AuthError{Reason: "login request", Err: err}
	}
	if status < 200 || status >= 300 {
		return booking.Session{}, &booking.AuthError{Reason: fmt.Sprintf("login failed with status %d", status)}
	}
	token := header.Get("jwt-token")
	if token == "" {
		return booking.Session{}, &booking.AuthError{Reason: "no jwt-token in login response"}
	}

	var lr loginResponse
	if err := json.Unmarshal(resp, &lr); err == nil && lr.User != nil && lr.User.Member != nil {
		c.log.Info("logged in as %s (member %d)", lr.User.Member.FirstName, lr.User.Member.ID)
	}

	sess := booking.Session{Token: token, ExpiresAt: c.now().Add(c.cfg.TokenTTL)}
	c.tokens.Set(tokenKey, sess, c.cfg.TokenTTL)
	if c.store != nil {
		if err := c.store.Save(sess); err != nil {
			c.log.Warning("could not persist session: %v", err)
		}
	}
	return sess, nil
}

// token returns a usable session token, restoring a stored session or
// logging in when none is cached.
func (c *Client) token(ctx context.Context) (string, error) {
	if v, ok := c.tokens.Get(tokenKey); ok {
		return v.(booking.Session).Token, nil
	}
	if c.store != nil {
		if sess, err := c.store.Load(); err == nil && sess.Valid(c.now()) {
			c.tokens.Set(tokenKey, sess, sess.ExpiresAt.Sub(c.now()))
			return sess.Token, nil
		}
	}
	sess, err := c.Login(ctx)
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}

// authed performs a request with the session token, mapping 401/403 to
// *booking.AuthError and dropping the cached token.
func (c *Client) authed(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	token, err := c.token(ctx)
	if err != nil {
		return 0, nil, err
	}
	status, _, resp, err := c.do(ctx, method, path, query, body, token)
	if err != nil {
		return status, nil, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.tokens.Delete(tokenKey)
		return status, resp, &booking.AuthError{Reason: fmt.Sprintf("%s returned %d", path, status)}
	}
	return status, resp, nil
}

func (c *Client) ListAvailableSlots(ctx context.Context, rangeDays int) ([]booking.Slot, error) {
	req := weeklyClassesRequest{ClubID: c.cfg.ClubID, DaysInWeek: rangeDays}
	status, resp, err := c.authed(ctx, http.MethodPost, "/Classes/ClassCalendar/WeeklyClasses", nil, req)
	if err != nil {
		if booking.IsAuth(err) {
			return nil, err
		}
		return nil, &booking.FetchError{Op: "catalog", Err: err}
	}
	if status != http.StatusOK {
		return nil, &booking.FetchError{Op: "catalog", Err: fmt.Errorf("status %d", status)}
	}

	var wr weeklyClassesResponse
	if err := json.Unmarshal(resp, &wr); err != nil {
		return nil, &booking.FetchError{Op: "catalog", Err: err}
	}
	var out []booking.Slot
	for _, zone := range wr.CalendarData {
		for _, hour := range zone.ClassesPerHour {
			for _, day := range hour.ClassesPerDay {
				for _, item := range day {
					start, err := c.parseTime(item.StartTime)
					if err != nil {
						c.log.Warning("skipping class %d: %v", item.ID, err)
						continue
					}
					out = append(out, booking.Slot{
						ID:        item.ID,
						Name:      item.Name,
						StartTime: start,
						Status:    booking.Status(item.Status),
						Trainer:   deref(item.Trainer),
					})
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (c *Client) GetSlotDetails(ctx context.Context, id int64) (booking.SlotDetail, error) {
	q := url.Values{"classId": {strconv.FormatInt(id, 10)}}
	status, resp, err := c.authed(ctx, http.MethodGet, "/Classes/ClassCalendar/Details", q, nil)
	if err != nil {
		if booking.IsAuth(err) {
			return booking.SlotDetail{}, err
		}
		return booking.SlotDetail{}, &booking.FetchError{Op: "details", Err: err}
	}
	switch {
	case status == http.StatusNotFound:
		return booking.SlotDetail{}, &booking.FetchError{Op: "details", Err: fmt.Errorf("class %d: %w", id, booking.ErrNotFound)}
	case status != http.StatusOK:
		return booking.SlotDetail{}, &booking.FetchError{Op: "details", Err: fmt.Errorf("status %d", status)}
	}

	var dr classDetailsResponse
	if err := json.Unmarshal(resp, &dr); err != nil {
		return booking.SlotDetail{}, &booking.FetchError{Op: "details", Err: err}
	}
	start, err := c.parseTime(dr.StartTime)
	if err != nil {
		return booking.SlotDetail{}, &booking.FetchError{Op: "details", Err: err}
	}
	d := booking.SlotDetail{Slot: booking.Slot{
		ID:        dr.ID,
		Name:      dr.Name,
		StartTime: start,
		Status:    booking.Status(dr.Status),
		Trainer:   deref(dr.Trainer),
	}}
	for _, u := range dr.Users {
		if u.User.IsCurrentUser && u.StandByQueueNumber != nil {
			d.WaitlistPosition = *u.StandByQueueNumber
			break
		}
	}
	return d, nil
}

func (c *Client) ReserveSlot(ctx context.Context, id int64) (booking.Ticket, error) {
	req := classRequest{ClassID: id, ClubID: strconv.Itoa(c.cfg.ClubID)}
	status, resp, err := c.authed(ctx, http.MethodPost, "/Classes/ClassCalendar/BookClass", nil, req)
	if err != nil {
		return booking.Ticket{}, err
	}
	if status < 200 || status >= 300 {
		return booking.Ticket{}, &booking.ReservationError{SlotID: id, StatusCode: status, Text: string(resp)}
	}

	var br bookClassResponse
	if err := json.Unmarshal(resp, &br); err != nil {
		return booking.Ticket{}, &booking.ReservationError{SlotID: id, StatusCode: status, Text: "invalid booking response: " + err.Error()}
	}
	if len(br.Tickets) == 0 {
		return booking.Ticket{}, &booking.ReservationError{SlotID: id, StatusCode: status, Text: "no ticket in booking response"}
	}
	t := br.Tickets[0]
	start, err := c.parseTime(t.StartTime)
	if err != nil {
		c.log.Warning("booking ticket for class %d: %v", id, err)
	}
	return booking.Ticket{Name: t.Name, StartTime: start, Trainer: deref(t.Trainer)}, nil
}

func (c *Client) CancelReservation(ctx context.Context, id int64) error {
	req := classRequest{ClassID: id, ClubID: strconv.Itoa(c.cfg.ClubID)}
	status, resp, err := c.authed(ctx, http.MethodPost, "/Classes/ClassCalendar/CancelBooking", nil, req)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &booking.ReservationError{SlotID: id, StatusCode: status, Text: string(resp)}
	}
	return nil
}

// Bookings lists the member's booked and waitlisted classes in the next days,
// with waitlist positions. Classes whose details cannot be read are skipped.
func (c *Client) Bookings(ctx context.Context, days int) ([]booking.SlotDetail, error) {
	slots, err := c.ListAvailableSlots(ctx, days)
	if err != nil {
		return nil, err
	}
	var out []booking.SlotDetail
	for _, s := range slots {
		if !s.Status.Held() {
			continue
		}
		d, err := c.GetSlotDetails(ctx, s.ID)
		if err != nil {
			c.log.Warning("details for class %d: %v", s.ID, err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (c *Client) parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timeLayout, s, c.cfg.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, token string) (int, http.Header, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, nil, err
		}
	}

	var rdr io.Reader
	if body != nil {
		jb, err := json.Marshal(body)
		if err != nil {
			return 0, nil, nil, err
		}
		rdr = bytes.NewReader(jb)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rdr)
	if err != nil {
		return 0, nil, nil, err
	}

	origin := strings.Replace(c.cfg.BaseURL, "/clientportal2", "", 1)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.5")
	req.Header.Set("Origin", origin)
	req.Header.Set("Referer", c.cfg.BaseURL+"/")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("CP-LANG", "en")
	req.Header.Set("CP-MODE", "desktop")
	if body != nil {
		req.Header.Set("Content-Type", "application/json;charset=utf-8")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	res, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, nil, err
		}
		return 0, nil, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, res.Header, nil, err
	}
	return res.StatusCode, res.Header, b, nil
}

var _ booking.Service = (*Client)(nil)
