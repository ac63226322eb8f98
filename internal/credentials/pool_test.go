package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/valpere/novtran/internal/completion"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var testCooldowns = Cooldowns{
	RateLimit:  5 * time.Minute,
	Timeout:    30 * time.Second,
	Connection: 45 * time.Second,
	Errors:     time.Minute,
	MaxErrors:  3,
}

func newTestPool(t *testing.T, keys ...string) (*Pool, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	p, err := New(keys, testCooldowns, WithClock(clock.now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, clock
}

func acquireKeys(t *testing.T, p *Pool, n int) []string {
	t.Helper()
	var out []string
	for i := 0; i < n; i++ {
		c, err := p.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		out = append(out, c.Key)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNew_NoKeys(t *testing.T) {
	if _, err := New(nil, testCooldowns); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestAcquire_RoundRobin(t *testing.T) {
	p, _ := newTestPool(t, "a", "b", "c")
	got := acquireKeys(t, p, 5)
	if want := []string{"a", "b", "c", "a", "b"}; !equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestReport_RateLimitExcludesForCooldown(t *testing.T) {
	p, clock := newTestPool(t, "a", "b", "c")

	_ = acquireKeys(t, p, 1) // a
	b, _ := p.Acquire(context.Background())
	p.Report(b, completion.KindRateLimit)

	if got := acquireKeys(t, p, 4); !equal(got, []string{"c", "a", "c", "a"}) {
		t.Fatalf("rate-limited key still selected: %v", got)
	}

	clock.advance(testCooldowns.RateLimit - time.Second)
	if got := acquireKeys(t, p, 2); !equal(got, []string{"c", "a"}) {
		t.Fatalf("key re-admitted before cooldown elapsed: %v", got)
	}

	clock.advance(time.Second)
	if got := acquireKeys(t, p, 3); !equal(got, []string{"b", "c", "a"}) {
		t.Fatalf("key not re-admitted after cooldown: %v", got)
	}
}

func TestReport_CooldownPerKind(t *testing.T) {
	tests := []struct {
		kind completion.Kind
		want time.Duration
	}{
		{completion.KindRateLimit, testCooldowns.RateLimit},
		{completion.KindTimeout, testCooldowns.Timeout},
		{completion.KindNetwork, testCooldowns.Connection},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			p, clock := newTestPool(t, "key-one-0123456789")
			c, _ := p.Acquire(context.Background())
			start := clock.now()
			p.Report(c, tt.kind)

			st := p.Status()[0]
			if st.Available {
				t.Fatal("expected key to be cooling down")
			}
			if got := st.DisabledUntil.Sub(start); got != tt.want {
				t.Errorf("cooldown = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReport_AuthRevokes(t *testing.T) {
	p, clock := newTestPool(t, "a", "b")

	a, _ := p.Acquire(context.Background())
	p.Report(a, completion.KindAuth)
	if p.Active() != 1 {
		t.Fatalf("expected 1 active key, got %d", p.Active())
	}

	clock.advance(24 * time.Hour)
	if got := acquireKeys(t, p, 3); !equal(got, []string{"b", "b", "b"}) {
		t.Fatalf("revoked key selected: %v", got)
	}

	b, _ := p.Acquire(context.Background())
	p.Report(b, completion.KindAuth)
	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestReport_ConsecutiveErrorsBench(t *testing.T) {
	p, _ := newTestPool(t, "a")

	c, _ := p.Acquire(context.Background())
	p.Report(c, completion.KindMalformed)
	p.Report(c, completion.KindGeneric)
	p.ReportSuccess(c)
	p.Report(c, completion.KindGeneric)
	p.Report(c, completion.KindGeneric)
	if !p.Status()[0].Available {
		t.Fatal("streak should have been reset by ReportSuccess")
	}

	p.Report(c, completion.KindGeneric)
	st := p.Status()[0]
	if st.Available {
		t.Fatal("expected key to be benched after max consecutive errors")
	}
	if st.Errors != 5 {
		t.Errorf("errors = %d, want 5", st.Errors)
	}
}

func TestReport_CanceledIgnored(t *testing.T) {
	p, _ := newTestPool(t, "a")
	c, _ := p.Acquire(context.Background())
	p.Report(c, completion.KindCanceled)
	if st := p.Status()[0]; !st.Available || st.Errors != 0 {
		t.Errorf("canceled call should not count against the key: %+v", st)
	}
}

func TestAcquire_WaitsForEarliestCooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	var waits []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		clock.advance(d)
		return nil
	}
	p, err := New([]string{"a", "b"}, testCooldowns, WithClock(clock.now), WithSleep(sleep))
	if err != nil {
		t.Fatal(err)
	}

	a, _ := p.Acquire(context.Background())
	b, _ := p.Acquire(context.Background())
	p.Report(a, completion.KindNetwork) // 45s
	p.Report(b, completion.KindTimeout) // 30s

	c, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c.Key != "b" {
		t.Errorf("expected the key with the shortest cooldown, got %s", c.Key)
	}

	var total time.Duration
	for _, w := range waits {
		if w > defaultMaxWait {
			t.Errorf("single wait %v exceeds poll bound", w)
		}
		total += w
	}
	if total != testCooldowns.Timeout {
		t.Errorf("waited %v, want %v", total, testCooldowns.Timeout)
	}
}

func TestAcquire_ContextCanceledWhileWaiting(t *testing.T) {
	p, _ := newTestPool(t, "a")
	p.sleep = completion.Sleep

	c, _ := p.Acquire(context.Background())
	p.Report(c, completion.KindRateLimit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReport_StaleCredentialIgnored(t *testing.T) {
	p, _ := newTestPool(t, "a")
	p.Report(Credential{Key: "other", id: 0}, completion.KindAuth)
	if p.Active() != 1 {
		t.Error("report for an unknown key must not revoke a pool entry")
	}
}

func TestMask(t *testing.T) {
	if got := Mask("sk-abcdefghijklmnop"); got != "sk-abcde...mnop" {
		t.Errorf("Mask = %q", got)
	}
	if got := Mask("short"); got != "****" {
		t.Errorf("Mask(short) = %q", got)
	}
}
