package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/tunez/knob/internal/queue"
	"github.com/tunez/knob/internal/registry"
	"github.com/tunez/knob/internal/remote"
	"github.com/tunez/knob/internal/retry"
	"github.com/tunez/knob/internal/session"
)

const (
	// idleWait bounds how long Run sleeps without any deadline.
	idleWait = time.Minute
	// retryStep spaces out immediate retries while the network keeps
	// failing without a response.
	retryStep = 100 * time.Millisecond
)

// errSkipped marks an action that could not be sent because its target is
// gone, e.g. liking when nothing plays.
var errSkipped = errors.New("skipped")

// result is what a handler reports back to the failure policy.
type result struct {
	disp   retry.Disposition
	status int
	err    error
}

func success() result { return result{disp: retry.Success} }

// Run drives the worker until ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("sync worker started")
	defer e.logger.Info("sync worker stopped")
	for {
		if ctx.Err() != nil {
			return nil
		}
		now := e.now()
		if e.Step(ctx) {
			continue
		}
		wait := idleWait
		if d := e.nextDeadline(now); !d.IsZero() {
			wait = max(d.Sub(e.now()), 0)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case fn := <-e.control:
			timer.Stop()
			fn()
		case <-e.queue.Ready():
			timer.Stop()
		case <-timer.C:
		}
	}
}

// nextDeadline is the earliest moment after now at which Step may have work
// without being woken by an enqueue. Deadlines that already passed were seen
// by the Step that just came back idle, so something else is blocking them.
func (e *Engine) nextDeadline(now time.Time) time.Time {
	var next time.Time
	earliest := func(t time.Time) {
		if t.After(now) && (next.IsZero() || t.Before(next)) {
			next = t
		}
	}
	if e.Phase() != PhaseRunning {
		return next
	}
	earliest(e.sched.Next())
	if e.tokens.RefreshToken() != "" {
		if d := e.tokens.RefreshDeadline(); !d.IsZero() {
			earliest(d)
		}
		earliest(e.tokens.CoolDownUntil())
	}
	e.mu.Lock()
	earliest(e.holdUntil)
	e.mu.Unlock()
	return next
}

// Step performs at most one unit of work and reports whether it did
// anything. Control requests queued by the foreground run first.
func (e *Engine) Step(ctx context.Context) bool {
	for {
		select {
		case fn := <-e.control:
			fn()
			continue
		default:
		}
		break
	}

	now := e.now()
	phase := e.Phase()

	e.mu.Lock()
	held := now.Before(e.holdUntil)
	e.mu.Unlock()
	if held {
		return false
	}

	if phase == PhaseRunning {
		e.finishTrack(now)
		e.planTokenRefresh(now)
		if e.sched.Due(now) {
			e.push(queue.CurrentlyPlaying())
		}
	}

	head, found := e.queue.Peek()
	if !found {
		return false
	}
	authorizing := head.Kind == queue.KindGetToken && head.Code != ""

	switch {
	case phase == PhaseSuspended:
		return false
	case phase == PhaseSetup && !authorizing:
		// Nothing can be sent without an account.
		a, undo, hasUndo := e.take()
		if hasUndo {
			e.revert(undo)
		}
		e.logger.Debug("dropped action without account", slog.String("action", a.Kind.String()))
		return true
	case head.Kind != queue.KindGetToken && e.tokens.NeedsRefresh(now):
		if e.tokens.CoolingDown(now) {
			return false
		}
		e.mu.Lock()
		e.queue.EnqueueUrgent(queue.GetToken())
		e.mu.Unlock()
		return true
	case head.Kind == queue.KindGetToken && !authorizing && e.tokens.CoolingDown(now):
		return false
	}

	a, undo, hasUndo := e.take()
	e.process(ctx, a, undo, hasUndo)
	return true
}

// finishTrack clears a track whose estimate reached its end. When the end was
// reached by interpolation the next track is fetched right away; a track
// reported at its end waits for the regular poll.
func (e *Engine) finishTrack(now time.Time) {
	var ended, interpolated bool
	e.state.Update(func(s *session.State) {
		if !s.Finished(now) {
			return
		}
		interpolated = s.ProgressMillis < s.DurationMillis
		s.ResetProgress(true)
		ended = true
	})
	if !ended {
		return
	}
	e.clearImage()
	if interpolated {
		e.sched.PollNow(now)
	}
}

// planTokenRefresh queues a renewal as soon as the token runs out, even with
// nothing else pending.
func (e *Engine) planTokenRefresh(now time.Time) {
	if e.tokens.RefreshToken() == "" || !e.tokens.NeedsRefresh(now) || e.tokens.CoolingDown(now) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.queue.Has(queue.KindGetToken) {
		e.queue.EnqueueUrgent(queue.GetToken())
	}
}

// take dequeues the head together with the undo recorded when it was
// enqueued.
func (e *Engine) take() (queue.Action, session.Undo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, _ := e.queue.Dequeue()
	undo, hasUndo := e.undo[a.Kind]
	delete(e.undo, a.Kind)
	return a, undo, hasUndo
}

// pendingKinds lists the actions whose optimistic effect is showing but not
// yet confirmed.
func (e *Engine) pendingKinds() []queue.Kind {
	e.mu.Lock()
	defer e.mu.Unlock()
	kinds := lo.Keys(e.undo)
	if e.retry != nil && e.retry.hasUndo {
		kinds = append(kinds, e.retry.action.Kind)
	}
	return kinds
}

// requeue puts a failed action back at the front. When the user queued the
// same kind meanwhile, the newer intent wins and a is dropped.
func (e *Engine) requeue(a queue.Action, undo session.Undo, hasUndo bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.queue.Requeue(a) && hasUndo {
		e.undo[a.Kind] = undo
	}
}

func (e *Engine) revert(undo session.Undo) {
	e.state.Update(func(s *session.State) { *s = session.Reconcile(*s, undo, false) })
}

func (e *Engine) process(ctx context.Context, a queue.Action, undo session.Undo, hasUndo bool) {
	h, found := handlers[a.Kind]
	if !found {
		e.logger.Warn("no handler", slog.String("action", a.Kind.String()))
		return
	}
	res := h(e, ctx, a)
	now := e.now()

	if res.disp != retry.TransportError {
		e.mu.Lock()
		e.offline = false
		e.failStreak = 0
		e.mu.Unlock()
	}

	if res.disp == retry.Success && res.err == nil {
		if a.Kind.UserInitiated() {
			e.sched.Confirm(now)
		}
		return
	}
	e.fail(a, undo, hasUndo, res, now)
}

// fail applies the failure policy for a classified result. Handlers never
// look at status codes themselves.
func (e *Engine) fail(a queue.Action, undo session.Undo, hasUndo bool, res result, now time.Time) {
	log := e.logger.With(slog.String("action", a.Kind.String()), slog.Int("status", res.status))

	switch {
	case res.disp == retry.ReauthRequired:
		log.Info("access token rejected")
		e.tokens.ClearAccess()
		e.requeue(a, undo, hasUndo)
		e.mu.Lock()
		e.queue.EnqueueUrgent(queue.GetToken())
		e.mu.Unlock()

	case res.disp == retry.DeviceMissing:
		log.Info("playback device missing")
		e.reg.ClearActiveDevice()
		e.mu.Lock()
		e.retry = &pendingRetry{action: a, undo: undo, hasUndo: hasUndo}
		e.queue.Enqueue(queue.GetDevices())
		e.mu.Unlock()
		e.setStatus("Device not found, choose a device", true)

	case res.disp == retry.TransportError:
		log.Debug("no response", slog.Any("err", res.err))
		e.mu.Lock()
		e.offline = true
		e.holdUntil = now.Add(time.Duration(e.failStreak) * retryStep)
		e.failStreak++
		e.mu.Unlock()
		if a.Kind == queue.KindCurrentlyPlaying {
			e.sched.OnTransportError(now)
			return
		}
		e.requeue(a, undo, hasUndo)

	case errors.Is(res.err, errSkipped):
		log.Debug("action skipped")
		if hasUndo {
			e.revert(undo)
		}

	default:
		if remote.IsParse(res.err) {
			log.Error("malformed response", slog.Any("err", res.err))
			e.invalidatePlaylists()
		} else {
			log.Error("request failed", slog.String("disposition", res.disp.String()))
		}
		if hasUndo {
			e.revert(undo)
		}
		e.sched.OnError(now)
		e.setStatus(a.Kind.String()+" failed", true)
	}
}

// replayRetry queues the action that failed for lack of a device. Its
// optimistic effect is still showing, so it is not applied again.
func (e *Engine) replayRetry() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.retry == nil {
		return
	}
	r := e.retry
	e.retry = nil
	if e.queue.Enqueue(r.action) && r.hasUndo {
		e.undo[r.action.Kind] = r.undo
	}
}

// dropRetry forgets the pending retry and takes back its optimistic effect.
func (e *Engine) dropRetry() {
	e.mu.Lock()
	r := e.retry
	e.retry = nil
	e.mu.Unlock()
	if r != nil && r.hasUndo {
		e.revert(r.undo)
	}
}

// resetQueue empties the queue and forgets every pending optimistic undo.
func (e *Engine) resetQueue() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue.Clear()
	clear(e.undo)
	e.retry = nil
	e.holdUntil = time.Time{}
	e.failStreak = 0
}

func (e *Engine) switchUser(id string) {
	u, found := e.reg.User(id)
	if !found {
		e.setStatus("Unknown account", true)
		return
	}
	e.resetQueue()
	e.reg.SetActiveUser(id)
	e.activate(u)
	e.persist()
	e.logger.Info("switched account", slog.String("user", id))
}

func (e *Engine) selectDevice(id string) {
	if !e.reg.SetActiveDevice(id) {
		e.setStatus("Unknown device", true)
		return
	}
	e.persist()
	e.push(queue.TransferPlayback())
}

func (e *Engine) suspend() {
	e.resetQueue()
	e.sched.Disarm()
	e.setPhase(PhaseSuspended)
	e.logger.Info("sync suspended")
}

func (e *Engine) resume() {
	if e.Phase() != PhaseSuspended {
		return
	}
	if _, found := e.reg.ActiveUser(); !found {
		e.setPhase(PhaseSetup)
		return
	}
	e.setPhase(PhaseRunning)
	e.sched.Arm(e.now())
	e.logger.Info("sync resumed")
}

// removeActiveUser forgets an account whose refresh token was revoked. The
// next account takes over; without one the engine returns to setup.
func (e *Engine) removeActiveUser() {
	u, found := e.reg.ActiveUser()
	if !found {
		return
	}
	e.resetQueue()
	e.reg.RemoveUser(u.ID)
	e.state.Replace(session.State{})
	e.persist()
	e.logger.Warn("account access revoked", slog.String("user", u.ID))

	users := e.reg.Users()
	if len(users) == 0 {
		e.tokens.Reset()
		e.sched.Disarm()
		e.mu.Lock()
		e.playlists = playlistCache{}
		e.image = Image{}
		e.mu.Unlock()
		e.setPhase(PhaseSetup)
		e.setStatus("Signed out, log in again", true)
		return
	}
	e.reg.SetActiveUser(users[0].ID)
	e.activate(users[0])
	e.push(queue.GetToken())
	e.setStatus("Signed out "+displayName(u), true)
}

func displayName(u registry.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}
