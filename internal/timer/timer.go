package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"github.com/rickgao/wiotimer/internal/config"
	"github.com/rickgao/wiotimer/internal/connection"
	"github.com/rickgao/wiotimer/internal/lights"
)

// Registry is the subset of connection.Registry the timer uses.
type Registry interface {
	Add(ctx context.Context, id, uri string, cb connection.Callbacks, autoConnect bool) error
	Connect(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// Lights drives the LED strip.
type Lights interface {
	StartRainbow(ctx context.Context, r lights.Rainbow) error
	StopRainbow(ctx context.Context, r lights.Rainbow) error
}

// Matcher decides whether a payload is a button press.
type Matcher interface {
	Match(payload string) (bool, error)
}

// Config holds the timer settings.
type Config struct {
	ID       string
	URI      string
	Rainbow  lights.Rainbow
	Duration time.Duration

	MaxAttempts int // Negative disables reconnection
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// FromConfig builds a timer Config from the application config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		ID:  cfg.Socket.ID,
		URI: cfg.Socket.URI,
		Rainbow: lights.Rainbow{
			Amount:     cfg.Lights.Amount,
			Brightness: cfg.Lights.Brightness,
			Speed:      cfg.Lights.Speed,
			Key:        cfg.Lights.Key,
		},
		Duration:    cfg.Lights.Duration,
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		BaseDelay:   cfg.Reconnect.BaseDelay,
		MaxDelay:    cfg.Reconnect.MaxDelay,
	}
}

// Timer owns the hub connection and the rainbow state.
type Timer struct {
	cfg     Config
	reg     Registry
	lights  Lights
	trigger Matcher
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	stopping  bool
	running   bool
	cancelRun context.CancelFunc
}

// New creates a Timer.
func New(cfg Config, reg Registry, l Lights, trigger Matcher, logger zerolog.Logger) *Timer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Timer{
		cfg:     cfg,
		reg:     reg,
		lights:  l,
		trigger: trigger,
		logger:  logger.With().Str("component", "timer").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start registers the hub connection and connects it. A failed first
// connect is handed to the reconnect supervisor rather than returned.
func (t *Timer) Start(ctx context.Context) error {
	err := t.reg.Add(ctx, t.cfg.ID, t.cfg.URI, t.callbacks(), true)
	if err == nil {
		return nil
	}

	var te *connection.TransportError
	if !errors.As(err, &te) {
		return err
	}

	t.logger.Warn().Err(err).Msg("initial connect failed")
	t.spawn(t.reconnect)
	return nil
}

// Stop removes the connection, stops any running rainbow and waits for
// background work to finish.
func (t *Timer) Stop(ctx context.Context) error {
	t.mu.Lock()
	t.stopping = true
	if t.cancelRun != nil {
		t.cancelRun()
	}
	t.mu.Unlock()

	t.cancel()
	err := t.reg.Remove(ctx, t.cfg.ID)

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		t.logger.Warn().Msg("shutdown timeout, background work still running")
		return ctx.Err()
	}

	t.logger.Info().Msg("timer stopped")
	return err
}

// Running reports whether the rainbow is currently on.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Timer) callbacks() connection.Callbacks {
	return connection.Callbacks{
		OnConnect:    t.onConnect,
		OnDisconnect: t.onDisconnect,
		OnMessage:    t.onMessage,
	}
}

func (t *Timer) onConnect(ctx context.Context) error {
	t.logger.Info().Str("uri", t.cfg.URI).Msg("connected to hub")
	return nil
}

func (t *Timer) onDisconnect(ctx context.Context) error {
	t.logger.Info().Msg("disconnected from hub")
	if t.cfg.MaxAttempts < 0 {
		return nil
	}
	t.spawn(t.reconnect)
	return nil
}

func (t *Timer) onMessage(ctx context.Context, payload string) error {
	t.logger.Debug().Str("payload", payload).Msg("message received")

	pressed, err := t.trigger.Match(payload)
	if err != nil {
		t.logger.Warn().Err(err).Msg("could not inspect message")
		return nil
	}
	if !pressed {
		return nil
	}

	t.press()
	return nil
}

// press starts the rainbow, or ends a running one early.
func (t *Timer) press() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopping {
		return
	}
	if t.running {
		t.logger.Debug().Msg("button pressed while running, stopping early")
		t.cancelRun()
		return
	}

	runCtx, cancel := context.WithCancel(t.ctx)
	t.running = true
	t.cancelRun = cancel
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.rainbow(runCtx)
	}()
}

func (t *Timer) rainbow(runCtx context.Context) {
	defer func() {
		t.mu.Lock()
		t.cancelRun()
		t.running = false
		t.cancelRun = nil
		t.mu.Unlock()
	}()

	// Requests outlive an early stop so the strip is never left on.
	reqCtx := context.WithoutCancel(runCtx)

	if err := t.lights.StartRainbow(reqCtx, t.cfg.Rainbow); err != nil {
		t.logger.Warn().Err(err).Msg("could not start rainbow")
		return
	}
	t.logger.Debug().Msg("turning rainbow light on")

	wait := time.NewTimer(t.cfg.Duration)
	select {
	case <-wait.C:
	case <-runCtx.Done():
		wait.Stop()
	}

	if err := t.lights.StopRainbow(reqCtx, t.cfg.Rainbow); err != nil {
		t.logger.Warn().Err(err).Msg("could not stop rainbow")
		return
	}
	t.logger.Debug().Msg("turning rainbow light off")
}

// reconnect retries Connect with exponential backoff. At most one runs at a
// time: OnDisconnect fires once per session and a session only exists after
// a successful Connect.
func (t *Timer) reconnect() {
	b := &backoff.Backoff{
		Min:    t.cfg.BaseDelay,
		Max:    t.cfg.MaxDelay,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		delay := b.Duration()
		t.logger.Info().
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("attempting reconnection")

		wait := time.NewTimer(delay)
		select {
		case <-t.ctx.Done():
			wait.Stop()
			return
		case <-wait.C:
		}

		err := t.reg.Connect(t.ctx, t.cfg.ID)
		if err == nil {
			t.logger.Info().Int("attempt", attempt).Msg("reconnected")
			return
		}
		if errors.Is(err, connection.ErrReleased) || t.ctx.Err() != nil {
			return
		}
		t.logger.Warn().Err(err).Int("attempt", attempt).Msg("reconnection failed")
	}

	t.logger.Error().
		Int("attempts", t.cfg.MaxAttempts).
		Msg("giving up reconnecting")
}

// spawn runs fn in the background unless the timer is stopping.
func (t *Timer) spawn(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopping {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn()
	}()
}
