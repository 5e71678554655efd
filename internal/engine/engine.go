// Package engine drives every remote effect through a single serialized
// worker. The foreground only reads snapshots and calls Enqueue or one of the
// control methods; the worker owns the queue head, the token, the registry
// and the poll schedule.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/tunez/knob/internal/auth"
	"github.com/tunez/knob/internal/queue"
	"github.com/tunez/knob/internal/registry"
	"github.com/tunez/knob/internal/remote"
	"github.com/tunez/knob/internal/schedule"
	"github.com/tunez/knob/internal/session"
)

// Phase is the coarse engine mode shown to the user.
type Phase int

const (
	// PhaseSetup means no account is known; only an authorization can run.
	PhaseSetup Phase = iota
	PhaseRunning
	// PhaseSuspended means polling and the queue are stopped for an
	// unrelated blocking operation.
	PhaseSuspended
)

func (p Phase) String() string {
	switch p {
	case PhaseSetup:
		return "setup"
	case PhaseRunning:
		return "running"
	case PhaseSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Persister stores account records whenever they change.
type Persister interface {
	SaveAccounts(ctx context.Context, records []registry.Record) error
}

type Options struct {
	API       *remote.API
	Transport remote.Transport
	Exchanger *auth.Exchanger
	Persister Persister
	Logger    *slog.Logger
	// Now is the clock. Tests drive it by hand.
	Now func() time.Time

	PollInterval  time.Duration
	Timeout       time.Duration
	TokenCooldown time.Duration
	StatusTTL     time.Duration
	// Artwork enables cover image downloads.
	Artwork bool
}

// Status is a transient message for the user.
type Status struct {
	Text  string
	Err   bool
	Until time.Time
}

// Image is the most recently fetched cover.
type Image struct {
	URL  string
	Data []byte
}

type playlistCache struct {
	items    []remote.Playlist
	total    int
	complete bool
}

type Engine struct {
	api       *remote.API
	transport remote.Transport
	exchanger *auth.Exchanger
	persister Persister
	logger    *slog.Logger
	now       func() time.Time
	opts      Options

	queue  *queue.Queue
	tokens *auth.Manager
	state  *session.Store
	reg    *registry.Registry

	// sched is touched by the worker only.
	sched *schedule.Scheduler

	control chan func()

	// mu keeps the optimistic apply and the enqueue of an action atomic and
	// guards the fields below.
	mu         sync.Mutex
	undo       map[queue.Kind]session.Undo
	retry      *pendingRetry
	status     Status
	offline    bool
	phase      Phase
	pkce       *auth.PKCE
	playlists  playlistCache
	image      Image
	holdUntil  time.Time
	failStreak int
}

type pendingRetry struct {
	action  queue.Action
	undo    session.Undo
	hasUndo bool
}

func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.TokenCooldown <= 0 {
		opts.TokenCooldown = 5 * time.Second
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = 3 * time.Second
	}
	if opts.API == nil {
		opts.API, _ = remote.NewAPI("", "")
	}
	sched := schedule.New(opts.PollInterval)
	sched.Disarm()
	return &Engine{
		api:       opts.API,
		transport: opts.Transport,
		exchanger: opts.Exchanger,
		persister: opts.Persister,
		logger:    opts.Logger,
		now:       opts.Now,
		opts:      opts,
		queue:     queue.New(),
		tokens:    auth.NewManager(),
		state:     session.NewStore(),
		reg:       registry.New(),
		sched:     sched,
		control:   make(chan func(), 16),
		undo:      make(map[queue.Kind]session.Undo),
		phase:     PhaseSetup,
	}
}

// Restore loads persisted accounts. It must be called before Run.
func (e *Engine) Restore(records []registry.Record) {
	usable := lo.Filter(records, func(r registry.Record, _ int) bool { return r.Token != "" })
	if n := len(records) - len(usable); n > 0 {
		e.logger.Warn("skipped accounts without a refresh token", slog.Int("count", n))
	}
	e.reg.Restore(usable)
	u, ok := e.reg.ActiveUser()
	if !ok {
		e.setPhase(PhaseSetup)
		return
	}
	e.activate(u)
}

// activate makes u the account everything runs against.
func (e *Engine) activate(u registry.User) {
	e.tokens.Load(u.RefreshToken)
	e.state.Replace(session.State{})
	e.mu.Lock()
	e.playlists = playlistCache{}
	e.image = Image{}
	e.phase = PhaseRunning
	e.mu.Unlock()
	e.sched.Arm(e.now())
	if u.Provisional() || u.DisplayName == "" {
		e.push(queue.CurrentProfile())
	}
	e.push(queue.GetDevices())
}

// Enqueue queues a user intent. Actions with a predictable effect update the
// session state right away. It returns false when an action of the same
// kind is already pending.
func (e *Engine) Enqueue(a queue.Action) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.queue.Has(a.Kind) {
		return false
	}
	if e.phase != PhaseRunning && a.Kind != queue.KindGetToken {
		return false
	}
	var (
		undo session.Undo
		ok   bool
	)
	now := e.now()
	e.state.Update(func(s *session.State) {
		var next session.State
		next, undo, ok = session.ApplyOptimistic(*s, a, now)
		if ok {
			*s = next
			a = session.Pin(a, next)
		}
	})
	if ok {
		e.undo[a.Kind] = undo
	}
	return e.queue.Enqueue(a)
}

// push queues a follow-up without any optimistic effect.
func (e *Engine) push(a queue.Action) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Enqueue(a)
}

// AuthorizeURL starts a PKCE authorization and returns the page to open.
func (e *Engine) AuthorizeURL() string {
	p := auth.NewPKCE()
	e.mu.Lock()
	e.pkce = &p
	e.mu.Unlock()
	return p.AuthURL(e.exchanger.Config)
}

// Authorize queues the exchange of an authorization code obtained for the
// last AuthorizeURL. A pending refresh is replaced.
func (e *Engine) Authorize(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue.Remove(queue.KindGetToken)
	e.queue.EnqueueUrgent(queue.Authorize(code))
}

// SwitchUser makes another known account active. It runs on the worker
// between two actions.
func (e *Engine) SwitchUser(id string) {
	e.control <- func() { e.switchUser(id) }
}

// SelectDevice makes a listed device the playback target and moves playback
// there.
func (e *Engine) SelectDevice(id string) {
	e.control <- func() { e.selectDevice(id) }
}

// Suspend clears the queue and stops polling. It returns once the worker
// has no request in flight.
func (e *Engine) Suspend(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case e.control <- func() { e.suspend(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume undoes Suspend.
func (e *Engine) Resume() {
	e.control <- e.resume
}

// RefreshPlaylists drops the playlist cache and starts paging again.
func (e *Engine) RefreshPlaylists() {
	e.mu.Lock()
	e.playlists = playlistCache{}
	e.mu.Unlock()
	e.Enqueue(queue.GetPlaylists())
}

// Snapshot returns the session state with progress estimated at now.
func (e *Engine) Snapshot() session.State { return e.state.Snapshot(e.now()) }

func (e *Engine) Registry() *registry.Registry { return e.reg }

func (e *Engine) Tokens() *auth.Manager { return e.tokens }

func (e *Engine) Queue() *queue.Queue { return e.queue }

func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) setPhase(p Phase) {
	e.mu.Lock()
	e.phase = p
	e.mu.Unlock()
}

// Status returns the current message, if it has not expired.
func (e *Engine) Status() (Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.Text == "" || !e.now().Before(e.status.Until) {
		return Status{}, false
	}
	return e.status, true
}

func (e *Engine) setStatus(text string, isErr bool) {
	e.mu.Lock()
	e.status = Status{Text: text, Err: isErr, Until: e.now().Add(e.opts.StatusTTL)}
	e.mu.Unlock()
}

// Offline reports whether the last request got no response.
func (e *Engine) Offline() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offline
}

// Playlists returns the cached saved playlists and whether paging finished.
func (e *Engine) Playlists() ([]remote.Playlist, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]remote.Playlist(nil), e.playlists.items...), e.playlists.complete
}

// Image returns the current cover.
func (e *Engine) Image() Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.image
}

// RetryAction is the playback action waiting for a device to be chosen.
func (e *Engine) RetryAction() (queue.Action, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retry == nil {
		return queue.Action{}, false
	}
	return e.retry.action, true
}

func (e *Engine) persist() {
	if e.persister == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.opts.Timeout)
	defer cancel()
	if err := e.persister.SaveAccounts(ctx, e.reg.Records()); err != nil {
		e.logger.Error("save accounts", slog.Any("err", err))
	}
}
