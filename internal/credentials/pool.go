// Package credentials rotates API keys round-robin, benching a key for a
// cooldown window after transient failures and retiring it for good when
// the endpoint rejects it.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/valpere/novtran/internal/completion"
	"github.com/valpere/novtran/internal/config"
	"github.com/valpere/novtran/internal/logging"
)

// ErrNoCredentials means every key has been revoked.
var ErrNoCredentials = errors.New("no usable credentials")

// defaultMaxWait bounds a single wait while every key is cooling down.
const defaultMaxWait = 5 * time.Second

// Credential is a key handed out by Acquire. Report outcomes back with the
// same value.
type Credential struct {
	Key string
	id  int
}

func (c Credential) Masked() string {
	return Mask(c.Key)
}

// Mask hides all but the first 8 and last 4 characters of a key.
func Mask(key string) string {
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}

// Cooldowns sets the bench time per failure kind. Failures of other kinds
// bench a key for Errors once MaxErrors of them occur in a row.
type Cooldowns struct {
	RateLimit  time.Duration
	Timeout    time.Duration
	Connection time.Duration
	Errors     time.Duration
	MaxErrors  int
}

// CooldownsFromConfig maps the config section onto Cooldowns.
func CooldownsFromConfig(c config.CooldownConfig) Cooldowns {
	return Cooldowns{
		RateLimit:  c.RateLimit,
		Timeout:    c.Timeout,
		Connection: c.Connection,
		Errors:     c.Errors,
		MaxErrors:  c.MaxErrors,
	}
}

// Status is a snapshot of one key.
type Status struct {
	Index         int
	Masked        string
	Uses          int
	Errors        int
	DisabledUntil time.Time
	Revoked       bool
	Available     bool
}

type entry struct {
	key           string
	uses          int
	errors        int
	streak        int
	disabledUntil time.Time
	revoked       bool
	limiter       *rate.Limiter
}

type Pool struct {
	mu        sync.Mutex
	entries   []*entry
	next      int
	cooldowns Cooldowns

	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	maxWait time.Duration
	logger  *zap.Logger
}

type Option func(*Pool)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithSleep replaces the wait used while every key is cooling down.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Pool) { p.sleep = sleep }
}

// WithRequestsPerMinute paces each key independently. Zero disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(p *Pool) {
		if n <= 0 {
			return
		}
		for _, e := range p.entries {
			e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) { p.logger = logging.OrNop(l) }
}

// New builds a pool over keys in the given order.
func New(keys []string, cooldowns Cooldowns, opts ...Option) (*Pool, error) {
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}
	p := &Pool{
		cooldowns: cooldowns,
		now:       time.Now,
		sleep:     completion.Sleep,
		maxWait:   defaultMaxWait,
		logger:    zap.NewNop(),
	}
	for _, k := range keys {
		p.entries = append(p.entries, &entry{key: k})
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pool) Len() int {
	return len(p.entries)
}

// Active counts keys that have not been revoked.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range p.entries {
		if !e.revoked {
			n++
		}
	}
	return n
}

// Acquire returns the next available key in round-robin order. When all
// keys are cooling down it waits (in steps of at most 5s) and tries again;
// when all are revoked it returns ErrNoCredentials.
func (p *Pool) Acquire(ctx context.Context) (Credential, error) {
	for {
		c, limiter, wait, err := p.tryAcquire()
		if err != nil {
			return Credential{}, err
		}
		if wait == 0 {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return Credential{}, err
				}
			}
			return c, nil
		}

		if wait > p.maxWait {
			wait = p.maxWait
		}
		p.logger.Debug("all credentials cooling down", zap.Duration("wait", wait))
		if err := p.sleep(ctx, wait); err != nil {
			return Credential{}, err
		}
	}
}

func (p *Pool) tryAcquire() (Credential, *rate.Limiter, time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var earliest time.Time
	n := len(p.entries)
	for i := 0; i < n; i++ {
		idx := (p.next + i) % n
		e := p.entries[idx]
		if e.revoked {
			continue
		}
		if now.Before(e.disabledUntil) {
			if earliest.IsZero() || e.disabledUntil.Before(earliest) {
				earliest = e.disabledUntil
			}
			continue
		}
		p.next = (idx + 1) % n
		e.uses++
		return Credential{Key: e.key, id: idx}, e.limiter, 0, nil
	}

	if earliest.IsZero() {
		return Credential{}, nil, 0, ErrNoCredentials
	}
	return Credential{}, nil, earliest.Sub(now), nil
}

// Report records a failed call made with c.
func (p *Pool) Report(c Credential, kind completion.Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entry(c)
	if !ok || kind == completion.KindCanceled {
		return
	}
	e.errors++

	switch kind {
	case completion.KindAuth:
		e.revoked = true
		p.logger.Warn("credential rejected, disabled permanently", zap.String("credential", c.Masked()))
	case completion.KindRateLimit:
		p.bench(e, c, kind, p.cooldowns.RateLimit)
	case completion.KindTimeout:
		p.bench(e, c, kind, p.cooldowns.Timeout)
	case completion.KindNetwork:
		p.bench(e, c, kind, p.cooldowns.Connection)
	default:
		e.streak++
		if p.cooldowns.MaxErrors > 0 && e.streak >= p.cooldowns.MaxErrors {
			e.streak = 0
			p.bench(e, c, kind, p.cooldowns.Errors)
		}
	}
}

// ReportSuccess clears the consecutive-error streak of c.
func (p *Pool) ReportSuccess(c Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entry(c); ok {
		e.streak = 0
	}
}

func (p *Pool) entry(c Credential) (*entry, bool) {
	if c.id < 0 || c.id >= len(p.entries) || p.entries[c.id].key != c.Key {
		return nil, false
	}
	return p.entries[c.id], true
}

func (p *Pool) bench(e *entry, c Credential, kind completion.Kind, d time.Duration) {
	if d <= 0 {
		return
	}
	until := p.now().Add(d)
	if until.After(e.disabledUntil) {
		e.disabledUntil = until
	}
	p.logger.Info("credential cooling down",
		zap.String("credential", c.Masked()),
		zap.String("reason", kind.String()),
		zap.Duration("cooldown", d))
}

// Status returns a snapshot of every key.
func (p *Pool) Status() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	out := make([]Status, len(p.entries))
	for i, e := range p.entries {
		out[i] = Status{
			Index:         i + 1,
			Masked:        Mask(e.key),
			Uses:          e.uses,
			Errors:        e.errors,
			DisabledUntil: e.disabledUntil,
			Revoked:       e.revoked,
			Available:     !e.revoked && !now.Before(e.disabledUntil),
		}
	}
	return out
}

func (s Status) String() string {
	state := "available"
	switch {
	case s.Revoked:
		state = "revoked"
	case !s.Available:
		state = "cooling down until " + s.DisabledUntil.Format(time.TimeOnly)
	}
	return fmt.Sprintf("#%d %s uses=%d errors=%d %s", s.Index, s.Masked, s.Uses, s.Errors, state)
}
