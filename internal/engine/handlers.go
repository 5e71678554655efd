package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tunez/knob/internal/auth"
	"github.com/tunez/knob/internal/queue"
	"github.com/tunez/knob/internal/registry"
	"github.com/tunez/knob/internal/remote"
	"github.com/tunez/knob/internal/retry"
	"github.com/tunez/knob/internal/session"
)

type handler func(e *Engine, ctx context.Context, a queue.Action) result

// handlers maps every action kind to the remote call that carries it out.
var handlers map[queue.Kind]handler

func init() {
	handlers = map[queue.Kind]handler{
		queue.KindGetToken:         (*Engine).getToken,
		queue.KindCurrentlyPlaying: (*Engine).currentlyPlaying,
		queue.KindCurrentProfile:   (*Engine).currentProfile,
		queue.KindNext:             (*Engine).next,
		queue.KindPrevious:         (*Engine).previous,
		queue.KindSeek:             (*Engine).seek,
		queue.KindToggle:           (*Engine).toggle,
		queue.KindPlayContext:      (*Engine).playContext,
		queue.KindGetDevices:       (*Engine).getDevices,
		queue.KindSetVolume:        (*Engine).setVolume,
		queue.KindCheckLike:        (*Engine).checkLike,
		queue.KindToggleLike:       (*Engine).toggleLike,
		queue.KindToggleShuffle:    (*Engine).toggleShuffle,
		queue.KindToggleRepeat:     (*Engine).toggleRepeat,
		queue.KindTransferPlayback: (*Engine).transferPlayback,
		queue.KindGetPlaylistInfo:  (*Engine).getPlaylistInfo,
		queue.KindGetPlaylists:     (*Engine).getPlaylists,
		queue.KindGetImage:         (*Engine).getImage,
	}
}

// call sends req with the current access token and classifies the answer.
func (e *Engine) call(ctx context.Context, kind queue.Kind, req *remote.Request) (*remote.Response, result) {
	if !req.Image {
		remote.WithBearer(req, e.tokens.AccessToken())
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()
	resp, err := e.transport.Do(ctx, req)
	status := remote.StatusOf(resp, err)
	res := result{disp: retry.Classify(status, kind), status: status}
	if res.disp != retry.Success {
		res.err = res.disp.Err()
		if err != nil {
			res.err = err
		}
	}
	return resp, res
}

// send is call for requests whose body does not matter.
func (e *Engine) send(ctx context.Context, kind queue.Kind, req *remote.Request) result {
	_, res := e.call(ctx, kind, req)
	return res
}

func parseFailed(status int, err error) result {
	return result{disp: retry.Success, status: status, err: err}
}

func (e *Engine) device() string { return e.reg.ActiveDeviceID() }

func (e *Engine) currentlyPlaying(ctx context.Context, a queue.Action) result {
	resp, res := e.call(ctx, a.Kind, e.api.Player())
	if res.disp != retry.Success {
		return res
	}
	player, err := remote.DecodePlayer(resp.Body)
	if err != nil {
		return parseFailed(res.status, err)
	}

	now := e.now()
	var (
		next session.State
		ch   session.Changes
	)
	pending := e.pendingKinds()
	e.state.Update(func(s *session.State) {
		next, ch = session.ApplyPlayer(*s, player, now)
		next = session.KeepPending(next, *s, pending)
		*s = next
	})

	if player == nil || player.Item == nil {
		e.sched.OnEmpty(now)
		e.clearImage()
		return res
	}
	e.sched.OnPlaying(now, next.IsPlaying, next.ProgressMillis, next.DurationMillis)
	if player.Device.ID != "" {
		e.reg.SetDeviceVolume(player.Device.ID, player.Device.Volume())
	}

	if ch.TrackChanged {
		e.push(queue.CheckLike())
	}
	if ch.ContextChanged {
		if kind, id := remote.ContextID(next.ContextURI); kind == "playlist" && id != "" {
			e.push(queue.GetPlaylistInfo(id))
		}
	}
	if ch.ImageChanged {
		e.clearImage()
		if e.opts.Artwork && next.ImageURL != "" {
			e.push(queue.GetImage(next.ImageURL))
		}
	}
	return res
}

func (e *Engine) currentProfile(ctx context.Context, a queue.Action) result {
	resp, res := e.call(ctx, a.Kind, e.api.Profile())
	if res.disp != retry.Success {
		return res
	}
	profile, err := remote.DecodeProfile(resp.Body)
	if err != nil {
		return parseFailed(res.status, err)
	}
	u, found := e.reg.ActiveUser()
	if !found {
		return res
	}
	if e.reg.Rekey(u.ID, profile.ID, profile.DisplayName) {
		e.persist()
	}
	if u.ID != profile.ID {
		e.logger.Info("account identified", slog.String("user", profile.ID))
	}
	return res
}

func (e *Engine) next(ctx context.Context, a queue.Action) result {
	if e.state.Snapshot(e.now()).Disallow.SkipNext {
		e.setStatus("Skipping is not allowed", false)
		return success()
	}
	return e.send(ctx, a.Kind, e.api.Next(e.device()))
}

func (e *Engine) previous(ctx context.Context, a queue.Action) result {
	if e.state.Snapshot(e.now()).Disallow.SkipPrev {
		e.setStatus("Skipping is not allowed", false)
		return success()
	}
	return e.send(ctx, a.Kind, e.api.Previous(e.device()))
}

func (e *Engine) seek(ctx context.Context, a queue.Action) result {
	return e.send(ctx, a.Kind, e.api.Seek(e.device(), max(a.Millis, 0)))
}

func (e *Engine) toggle(ctx context.Context, a queue.Action) result {
	if a.On {
		return e.send(ctx, a.Kind, e.api.Play(e.device(), ""))
	}
	return e.send(ctx, a.Kind, e.api.Pause(e.device()))
}

func (e *Engine) playContext(ctx context.Context, a queue.Action) result {
	return e.send(ctx, a.Kind, e.api.Play(e.device(), a.URI))
}

func (e *Engine) getDevices(ctx context.Context, a queue.Action) result {
	resp, res := e.call(ctx, a.Kind, e.api.Devices())
	if res.disp != retry.Success {
		return res
	}
	listed, err := remote.DecodeDevices(resp.Body)
	if err != nil {
		return parseFailed(res.status, err)
	}
	devices := registry.DevicesFrom(listed)
	e.reg.ReplaceDevices(devices)
	e.persist()

	switch {
	case len(devices) == 0:
		e.dropRetry()
		e.setStatus("No devices available", true)
	case e.reg.ActiveDeviceID() != "":
		e.replayRetry()
	}
	return res
}

func (e *Engine) setVolume(ctx context.Context, a queue.Action) result {
	dev := e.device()
	res := e.send(ctx, a.Kind, e.api.Volume(dev, a.Percent))
	if res.disp == retry.Success && dev != "" {
		e.reg.SetDeviceVolume(dev, a.Percent)
	}
	return res
}

func (e *Engine) checkLike(ctx context.Context, a queue.Action) result {
	trackID := e.state.Snapshot(e.now()).TrackID
	if trackID == "" {
		return success()
	}
	resp, res := e.call(ctx, a.Kind, e.api.CheckSaved(trackID))
	if res.disp != retry.Success {
		return res
	}
	flags, err := remote.DecodeContains(resp.Body)
	if err != nil {
		return parseFailed(res.status, err)
	}
	e.state.Update(func(s *session.State) {
		if s.TrackID == trackID {
			s.IsLiked = flags[0]
			s.CheckedLike = true
		}
	})
	return res
}

func (e *Engine) toggleLike(ctx context.Context, a queue.Action) result {
	st := e.state.Snapshot(e.now())
	if st.TrackID == "" {
		return result{disp: retry.Success, err: errSkipped}
	}
	req := e.api.Unsave(st.TrackID)
	if a.On {
		req = e.api.Save(st.TrackID)
	}
	res := e.send(ctx, a.Kind, req)
	if res.disp == retry.Success {
		e.state.Update(func(s *session.State) {
			if s.TrackID == st.TrackID {
				s.CheckedLike = true
			}
		})
	}
	return res
}

func (e *Engine) toggleShuffle(ctx context.Context, a queue.Action) result {
	return e.send(ctx, a.Kind, e.api.Shuffle(e.device(), a.On))
}

func (e *Engine) toggleRepeat(ctx context.Context, a queue.Action) result {
	return e.send(ctx, a.Kind, e.api.Repeat(e.device(), a.Repeat))
}

func (e *Engine) transferPlayback(ctx context.Context, a queue.Action) result {
	dev := e.device()
	if dev == "" {
		return result{disp: retry.Success, err: errSkipped}
	}
	res := e.send(ctx, a.Kind, e.api.Transfer(dev))
	if res.disp == retry.Success {
		e.replayRetry()
		e.sched.Confirm(e.now())
	}
	return res
}

func (e *Engine) getPlaylistInfo(ctx context.Context, a queue.Action) result {
	resp, res := e.call(ctx, a.Kind, e.api.PlaylistInfo(a.ID))
	if res.disp != retry.Success {
		return res
	}
	info, err := remote.DecodePlaylistInfo(resp.Body)
	if err != nil {
		return parseFailed(res.status, err)
	}
	e.state.Update(func(s *session.State) {
		if _, id := remote.ContextID(s.ContextURI); id == a.ID && info.Name != "" {
			s.ContextName = info.Name
		}
	})
	return res
}

// getPlaylists fetches the next page after what is cached and queues itself
// again until the listing is complete.
func (e *Engine) getPlaylists(ctx context.Context, a queue.Action) result {
	e.mu.Lock()
	if e.playlists.complete {
		e.playlists = playlistCache{}
	}
	offset := len(e.playlists.items)
	e.mu.Unlock()

	resp, res := e.call(ctx, a.Kind, e.api.Playlists(offset))
	if res.disp != retry.Success {
		return res
	}
	page, err := remote.DecodePlaylists(resp.Body)
	if err != nil {
		return parseFailed(res.status, err)
	}

	e.mu.Lock()
	e.playlists.items = append(e.playlists.items, page.Items...)
	e.playlists.total = page.Total
	more := len(page.Items) > 0 && len(e.playlists.items) < page.Total
	e.playlists.complete = !more
	e.mu.Unlock()

	if more {
		e.push(queue.GetPlaylists())
	}
	return res
}

func (e *Engine) invalidatePlaylists() {
	e.mu.Lock()
	e.playlists = playlistCache{}
	e.mu.Unlock()
}

// getImage keeps only the cover of what is playing now.
func (e *Engine) getImage(ctx context.Context, a queue.Action) result {
	if e.state.Snapshot(e.now()).ImageURL != a.URL {
		return success()
	}
	resp, res := e.call(ctx, a.Kind, remote.Image(a.URL))
	if res.disp != retry.Success {
		return res
	}
	e.mu.Lock()
	e.image = Image{URL: a.URL, Data: resp.Body}
	e.mu.Unlock()
	return res
}

func (e *Engine) clearImage() {
	e.mu.Lock()
	e.image = Image{}
	e.mu.Unlock()
}

// getToken runs a code or refresh exchange. Exchange failures follow their
// own rules and never reach the generic failure policy, except for a missing
// response, which is retried like any other request.
func (e *Engine) getToken(ctx context.Context, a queue.Action) result {
	now := e.now()
	grant, value, verifier := auth.GrantRefresh, e.tokens.RefreshToken(), ""
	if a.Code != "" {
		e.mu.Lock()
		pkce := e.pkce
		e.mu.Unlock()
		if pkce == nil {
			e.setStatus("Authorization expired, try again", true)
			return success()
		}
		grant, value, verifier = auth.GrantCode, a.Code, pkce.Verifier
	}
	if value == "" {
		// An account that cannot renew its access is as good as revoked.
		e.logger.Warn("account has no refresh token")
		e.removeActiveUser()
		return success()
	}

	e.tokens.BeginRefresh()
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()
	tok, err := e.exchanger.Exchange(ctx, grant, value, verifier)

	var xe *auth.ExchangeError
	switch {
	case err == nil:
	case remote.IsTransport(err):
		e.tokens.Fail(now)
		return result{disp: retry.TransportError, status: remote.StatusNoResponse, err: err}
	case errors.As(err, &xe) && xe.Revoked():
		e.tokens.Fail(now)
		e.removeActiveUser()
		return success()
	case errors.As(err, &xe) && xe.Unauthorized():
		e.logger.Warn("token exchange unauthorized", slog.String("grant", grant.String()))
		e.tokens.ClearAccess()
		e.tokens.Fail(now.Add(e.opts.TokenCooldown))
		return success()
	default:
		e.logger.Error("token exchange failed", slog.String("grant", grant.String()), slog.Any("err", err))
		e.tokens.Fail(now.Add(e.opts.TokenCooldown))
		if grant == auth.GrantCode {
			e.setStatus("Login failed", true)
		}
		return success()
	}

	if grant == auth.GrantCode && tok.RefreshToken == "" {
		e.logger.Error("authorization returned no refresh token")
		e.tokens.Fail(now)
		e.setStatus("Login failed", true)
		return success()
	}

	rotated := e.tokens.Apply(tok.AccessToken, tok.RefreshToken, auth.Lifetime(tok), now)
	if grant == auth.GrantCode {
		e.mu.Lock()
		e.pkce = nil
		e.mu.Unlock()
		e.addAccount(e.tokens.RefreshToken())
		return success()
	}
	if rotated {
		if u, found := e.reg.ActiveUser(); found {
			e.reg.UpdateToken(u.ID, e.tokens.RefreshToken())
			e.persist()
		}
	}
	return success()
}

// addAccount registers a freshly authorized account under a provisional id
// until its profile arrives, and makes it active.
func (e *Engine) addAccount(refresh string) {
	u := registry.User{ID: registry.NewProvisionalID(), RefreshToken: refresh}
	e.resetQueue()
	e.reg.AddUser(u)
	e.reg.SetActiveUser(u.ID)

	// activate reloads the token manager, so keep the fresh access token.
	tok := e.tokens.Token()
	e.activate(u)
	e.tokens.Apply(tok.Access, tok.Refresh, tok.Lifetime+auth.Margin, tok.IssuedAt)
	e.persist()
	e.setStatus("Logged in", false)
	e.logger.Info("account added")
}
