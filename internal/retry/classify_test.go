package retry

import (
	"errors"
	"testing"

	"github.com/tunez/knob/internal/queue"
	"github.com/tunez/knob/internal/remote"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		kind   queue.Kind
		want   Disposition
	}{
		{"ok", 200, queue.KindCurrentlyPlaying, Success},
		{"no content", 204, queue.KindToggle, Success},
		{"unauthorized", 401, queue.KindNext, ReauthRequired},
		{"unauthorized poll", 401, queue.KindCurrentlyPlaying, ReauthRequired},
		{"device missing toggle", 404, queue.KindToggle, DeviceMissing},
		{"device missing volume", 404, queue.KindSetVolume, DeviceMissing},
		{"not found non playback", 404, queue.KindGetPlaylistInfo, ServerError},
		{"not found poll", 404, queue.KindCurrentlyPlaying, ServerError},
		{"no response", remote.StatusNoResponse, queue.KindToggle, TransportError},
		{"rate limited", 429, queue.KindGetDevices, ServerError},
		{"server", 502, queue.KindSeek, ServerError},
		{"forbidden", 403, queue.KindNext, ServerError},
		{"redirect", 302, queue.KindGetImage, Unhandled},
		{"informational", 100, queue.KindGetImage, Unhandled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.status, tt.kind); got != tt.want {
				t.Errorf("Classify(%d, %v) = %v, want %v", tt.status, tt.kind, got, tt.want)
			}
		})
	}
}

func TestClassifyGrant(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		refresh bool
		want    Disposition
	}{
		{"ok", 200, true, Success},
		{"refresh revoked", 400, true, Revoked},
		{"code rejected", 400, false, ServerError},
		{"client unauthorized", 401, true, ReauthRequired},
		{"server", 503, true, ServerError},
		{"no response", remote.StatusNoResponse, true, TransportError},
		{"redirect", 302, false, Unhandled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyGrant(tt.status, tt.refresh); got != tt.want {
				t.Errorf("ClassifyGrant(%d, %v) = %v, want %v", tt.status, tt.refresh, got, tt.want)
			}
		})
	}
}

func TestDispositionErr(t *testing.T) {
	if Success.Err() != nil {
		t.Errorf("success should not map to an error")
	}
	if !errors.Is(DeviceMissing.Err(), remote.ErrDevice) {
		t.Errorf("DeviceMissing should map to ErrDevice")
	}
	if !remote.IsAuth(Revoked.Err()) {
		t.Errorf("Revoked should map to ErrAuth")
	}
	if !remote.IsTransport(TransportError.Err()) {
		t.Errorf("TransportError should map to ErrTransport")
	}
	if Disposition(42).String() != "Unknown" {
		t.Errorf("unexpected string for unknown disposition")
	}
}
