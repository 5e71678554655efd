package queue

import (
	"sync"
	"testing"
)

func kinds(q *Queue) []Kind {
	var out []Kind
	for _, a := range q.Items() {
		out = append(out, a.Kind)
	}
	return out
}

func TestQueueEnqueueDedup(t *testing.T) {
	actions := []Action{
		GetToken(), CurrentlyPlaying(), CurrentProfile(), Next(), Previous(), Seek(1000),
		Toggle(), PlayContext("spotify:album:1", "A"), GetDevices(), SetVolume(40),
		CheckLike(), ToggleLike(), ToggleShuffle(), ToggleRepeat(), TransferPlayback(),
		GetPlaylistInfo("p1"), GetPlaylists(), GetImage("http://img"),
	}
	for _, a := range actions {
		t.Run(a.String(), func(t *testing.T) {
			q := New()
			if !q.Enqueue(a) {
				t.Fatalf("first enqueue rejected")
			}
			if q.Enqueue(a) {
				t.Fatalf("second enqueue accepted")
			}
			if q.Len() != 1 {
				t.Fatalf("expected 1 item got %d", q.Len())
			}
		})
	}
}

func TestQueueDedupIgnoresPayload(t *testing.T) {
	q := New()
	q.Enqueue(Seek(1000))
	if q.Enqueue(Seek(5000)) {
		t.Fatalf("expected seek with different target to be rejected")
	}
	a, _ := q.Dequeue()
	if a.Millis != 1000 {
		t.Fatalf("expected first seek to survive, got %d", a.Millis)
	}
}

func TestQueueOrder(t *testing.T) {
	q := New()
	q.Enqueue(Next())
	q.Enqueue(Toggle())
	q.Enqueue(GetDevices())
	want := []Kind{KindNext, KindToggle, KindGetDevices}
	for _, k := range want {
		a, ok := q.Dequeue()
		if !ok || a.Kind != k {
			t.Fatalf("expected %v got %v (ok=%v)", k, a.Kind, ok)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestQueueEnqueueUrgent(t *testing.T) {
	q := New()
	q.Enqueue(Next())
	q.Enqueue(Toggle())
	q.EnqueueUrgent(GetToken())
	got := kinds(q)
	if got[0] != KindGetToken || len(got) != 3 {
		t.Fatalf("expected GetToken first, got %v", got)
	}
}

func TestQueueEnqueueUrgentMovesExisting(t *testing.T) {
	q := New()
	q.Enqueue(Next())
	q.Enqueue(GetToken())
	q.EnqueueUrgent(GetToken())
	got := kinds(q)
	if len(got) != 2 || got[0] != KindGetToken || got[1] != KindNext {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestQueueRequeue(t *testing.T) {
	q := New()
	q.Enqueue(Next())
	if !q.Requeue(Toggle()) {
		t.Fatalf("requeue rejected")
	}
	if got := kinds(q); got[0] != KindToggle {
		t.Fatalf("expected Toggle first, got %v", got)
	}
	if q.Requeue(Next()) {
		t.Fatalf("requeue of an already queued kind accepted")
	}
}

func TestQueueClear(t *testing.T) {
	q := New()
	q.Enqueue(Next())
	q.Enqueue(Toggle())
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("expected empty after clear")
	}
	if !q.Enqueue(Next()) {
		t.Fatalf("enqueue after clear rejected")
	}
}

func TestQueueReadySignal(t *testing.T) {
	q := New()
	q.Enqueue(Next())
	select {
	case <-q.Ready():
	default:
		t.Fatalf("expected ready signal")
	}
}

func TestQueueConcurrentEnqueue(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(Toggle())
			q.Dequeue()
		}()
	}
	wg.Wait()
	if q.Len() > 1 {
		t.Fatalf("dedup violated: %d items", q.Len())
	}
}

func TestKindFlags(t *testing.T) {
	tests := []struct {
		kind     Kind
		playback bool
		user     bool
	}{
		{KindToggle, true, true},
		{KindSeek, true, true},
		{KindSetVolume, true, false},
		{KindCurrentlyPlaying, false, false},
		{KindGetDevices, false, false},
		{KindPlayContext, true, true},
	}
	for _, tt := range tests {
		if got := tt.kind.PlaybackControl(); got != tt.playback {
			t.Errorf("%v.PlaybackControl() = %v, want %v", tt.kind, got, tt.playback)
		}
		if got := tt.kind.UserInitiated(); got != tt.user {
			t.Errorf("%v.UserInitiated() = %v, want %v", tt.kind, got, tt.user)
		}
	}
	if Kind(99).String() != "Unknown" {
		t.Errorf("expected Unknown for out of range kind")
	}
}

func TestSetVolumeClamps(t *testing.T) {
	if SetVolume(150).Percent != 100 || SetVolume(-3).Percent != 0 {
		t.Fatalf("volume not clamped")
	}
}

func TestQueueRemove(t *testing.T) {
	q := New()
	q.Enqueue(GetToken())
	q.Enqueue(Next())
	if !q.Remove(KindGetToken) {
		t.Fatalf("expected removal")
	}
	if q.Remove(KindGetToken) {
		t.Fatalf("second removal should report false")
	}
	if a, _ := q.Peek(); a.Kind != KindNext {
		t.Fatalf("front = %v", a.Kind)
	}
}
