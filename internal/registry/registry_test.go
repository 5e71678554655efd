package registry

import (
	"strings"
	"testing"

	"github.com/tunez/knob/internal/remote"
)

func devices(ids ...string) []Device {
	out := make([]Device, 0, len(ids))
	for _, id := range ids {
		out = append(out, Device{ID: id, Name: "dev " + id, Volume: 50})
	}
	return out
}

func TestFirstUserBecomesActive(t *testing.T) {
	r := New()
	r.AddUser(User{ID: "a", RefreshToken: "ta"})
	r.AddUser(User{ID: "b", RefreshToken: "tb"})
	u, ok := r.ActiveUser()
	if !ok || u.ID != "a" {
		t.Fatalf("active = %+v, %v", u, ok)
	}
	r.AddUser(User{ID: "a", RefreshToken: "ta2", DisplayName: "Alice"})
	if r.Len() != 2 {
		t.Fatalf("duplicate user added")
	}
	if u, _ := r.User("a"); u.RefreshToken != "ta2" || u.DisplayName != "Alice" {
		t.Fatalf("existing user not updated: %+v", u)
	}
}

func TestSetActiveDevicePersistsOnUser(t *testing.T) {
	r := New()
	r.AddUser(User{ID: "a"})
	r.ReplaceDevices(devices("d1", "d2"))
	if r.SetActiveDevice("missing") {
		t.Fatalf("unknown device accepted")
	}
	if !r.SetActiveDevice("d2") {
		t.Fatalf("device not selected")
	}
	if d, ok := r.ActiveDevice(); !ok || d.ID != "d2" {
		t.Fatalf("active device = %+v", d)
	}
	if u, _ := r.ActiveUser(); u.SelectedDeviceID != "d2" {
		t.Fatalf("selection not stored on user: %+v", u)
	}
}

func TestReplaceDevicesClearsMissingSelection(t *testing.T) {
	r := New()
	r.AddUser(User{ID: "a"})
	r.ReplaceDevices(devices("d1", "d2"))
	r.SetActiveDevice("d1")

	r.ReplaceDevices(devices("d2"))
	if _, ok := r.ActiveDevice(); ok {
		t.Fatalf("dangling device selection kept")
	}
	if r.ActiveDeviceID() != "" {
		t.Fatalf("active id = %q", r.ActiveDeviceID())
	}

	// The remembered device comes back once it is listed again.
	r.ReplaceDevices(devices("d1", "d2"))
	if r.ActiveDeviceID() != "d1" {
		t.Fatalf("remembered device not restored, got %q", r.ActiveDeviceID())
	}
}

func TestReplaceDevicesDefaultsToServiceActive(t *testing.T) {
	r := New()
	r.AddUser(User{ID: "a"})
	devs := devices("d1", "d2", "d3")
	devs[2].Active = true
	r.ReplaceDevices(devs)
	if r.ActiveDeviceID() != "d3" {
		t.Fatalf("active = %q, want d3", r.ActiveDeviceID())
	}
	if u, _ := r.ActiveUser(); u.SelectedDeviceID != "d3" {
		t.Fatalf("default not remembered")
	}
}

func TestSetActiveUserLoadsSelection(t *testing.T) {
	r := New()
	r.AddUser(User{ID: "a", SelectedDeviceID: "da"})
	r.AddUser(User{ID: "b", SelectedDeviceID: "db"})
	r.ReplaceDevices(devices("da"))
	if !r.SetActiveUser("b") {
		t.Fatalf("switch failed")
	}
	if r.ActiveDeviceID() != "db" || len(r.Devices()) != 0 {
		t.Fatalf("switch should load db and drop devices: %q %v", r.ActiveDeviceID(), r.Devices())
	}
	if r.SetActiveUser("zzz") {
		t.Fatalf("unknown user accepted")
	}
}

func TestRemoveOnlyUser(t *testing.T) {
	r := New()
	r.AddUser(User{ID: "a", SelectedDeviceID: "d1"})
	r.ReplaceDevices(devices("d1"))
	if !r.RemoveUser("a") {
		t.Fatalf("remove failed")
	}
	if r.Len() != 0 {
		t.Fatalf("users left: %d", r.Len())
	}
	if _, ok := r.ActiveUser(); ok {
		t.Fatalf("active user should be cleared")
	}
	if r.ActiveDeviceID() != "" || len(r.Devices()) != 0 {
		t.Fatalf("device state should be cleared")
	}
	if r.RemoveUser("a") {
		t.Fatalf("second remove should report false")
	}
}

func TestRekeyProvisional(t *testing.T) {
	r := New()
	id := NewProvisionalID()
	if !IsProvisional(id) {
		t.Fatalf("id %q not provisional", id)
	}
	r.AddUser(User{ID: id, RefreshToken: "t"})
	if !r.Rekey(id, "svc", "Alice") {
		t.Fatalf("rekey failed")
	}
	u, ok := r.ActiveUser()
	if !ok || u.ID != "svc" || u.DisplayName != "Alice" || u.Provisional() {
		t.Fatalf("active = %+v", u)
	}
}

func TestRekeyMergesExisting(t *testing.T) {
	r := New()
	r.AddUser(User{ID: "svc", RefreshToken: "old", DisplayName: "Alice", SelectedDeviceID: "d1"})
	id := NewProvisionalID()
	r.AddUser(User{ID: id, RefreshToken: "new"})
	r.SetActiveUser(id)

	r.Rekey(id, "svc", "")
	if r.Len() != 1 {
		t.Fatalf("expected merge, have %d users", r.Len())
	}
	u, _ := r.ActiveUser()
	if u.ID != "svc" || u.RefreshToken != "new" || u.DisplayName != "Alice" || u.SelectedDeviceID != "d1" {
		t.Fatalf("merged = %+v", u)
	}
}

func TestRoundTripKeepsSelection(t *testing.T) {
	r := New()
	r.AddUser(User{ID: "a", DisplayName: "A", RefreshToken: "ta"})
	r.AddUser(User{ID: "b", DisplayName: "B", RefreshToken: "tb"})
	r.SetActiveUser("b")
	r.ReplaceDevices(devices("d1", "d2"))
	r.SetActiveDevice("d2")

	data, err := r.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	restored := New()
	if err := restored.Decode(data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	u, ok := restored.ActiveUser()
	if !ok || u.ID != "b" || u.RefreshToken != "tb" {
		t.Fatalf("active user = %+v", u)
	}
	if restored.ActiveDeviceID() != "d2" {
		t.Fatalf("active device = %q", restored.ActiveDeviceID())
	}
	restored.ReplaceDevices(devices("d1", "d2"))
	if d, ok := restored.ActiveDevice(); !ok || d.ID != "d2" {
		t.Fatalf("resolved device = %+v", d)
	}
	if got := restored.Users(); len(got) != 2 || got[0].ID != "a" {
		t.Fatalf("order lost: %+v", got)
	}
}

func TestRecordsTruncate(t *testing.T) {
	r := New()
	r.AddUser(User{
		ID:           "a",
		DisplayName:  strings.Repeat("é", 40),
		RefreshToken: strings.Repeat("x", 600),
	})
	rec := r.Records()[0]
	if len(rec.Token) != MaxTokenLen {
		t.Fatalf("token len = %d", len(rec.Token))
	}
	if len(rec.Name) != MaxNameLen || rec.Name != strings.Repeat("é", 32) {
		t.Fatalf("name = %q (%d)", rec.Name, len(rec.Name))
	}
	if u, _ := r.User("a"); len(u.RefreshToken) != 600 {
		t.Fatalf("in-memory token should stay whole")
	}
}

func TestRestoreWithoutSelection(t *testing.T) {
	r := New()
	r.Restore([]Record{{ID: "a"}, {ID: "a"}, {ID: ""}, {ID: "b"}})
	if r.Len() != 2 {
		t.Fatalf("len = %d", r.Len())
	}
	if u, _ := r.ActiveUser(); u.ID != "a" {
		t.Fatalf("first record should be active, got %q", u.ID)
	}
	if err := r.Decode([]byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDevicesFrom(t *testing.T) {
	vol := 30
	got := DevicesFrom([]remote.Device{
		{ID: "d1", Name: "Kitchen", IsActive: true, VolumePercent: &vol},
		{ID: "", Name: "Restricted"},
		{ID: "d2", Name: "Car"},
	})
	if len(got) != 2 {
		t.Fatalf("got %d devices", len(got))
	}
	if got[0].Volume != 30 || !got[0].Active || got[1].Volume != -1 {
		t.Fatalf("unexpected devices %+v", got)
	}
}
