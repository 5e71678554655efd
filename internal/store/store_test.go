package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tunez/knob/internal/registry"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state", "knob.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAccountsSaveLoad(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	records := []registry.Record{
		{Name: "Alice", ID: "a", Token: "ta", SelectedDeviceID: "d1"},
		{Name: "Bob", ID: "b", Token: "tb", Selected: true},
	}
	if err := s.SaveAccounts(ctx, records); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}
	got, err := s.LoadAccounts(ctx)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(got))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("account %d mismatch: %+v != %+v", i, got[i], records[i])
		}
	}

	// Saving again replaces everything.
	if err := s.SaveAccounts(ctx, records[1:]); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}
	got, _ = s.LoadAccounts(ctx)
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected only b, got %+v", got)
	}
}

func TestRegistryRoundTripThroughStore(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	r := registry.New()
	r.AddUser(registry.User{ID: "a", RefreshToken: "ta"})
	r.AddUser(registry.User{ID: "b", RefreshToken: "tb"})
	r.SetActiveUser("b")
	r.ReplaceDevices([]registry.Device{{ID: "d9"}})
	r.SetActiveDevice("d9")
	if err := s.SaveAccounts(ctx, r.Records()); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}

	records, err := s.LoadAccounts(ctx)
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}
	restored := registry.New()
	restored.Restore(records)
	u, ok := restored.ActiveUser()
	if !ok || u.ID != "b" || restored.ActiveDeviceID() != "d9" {
		t.Fatalf("selection lost: %+v %q", u, restored.ActiveDeviceID())
	}
}

func TestEmptyStore(t *testing.T) {
	s := openTemp(t)
	got, err := s.LoadAccounts(context.Background())
	if err != nil {
		t.Fatalf("LoadAccounts: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no accounts, got %d", len(got))
	}
}

func TestSettings(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	v, err := s.Setting(ctx, SettingFirmwareURL)
	if err != nil || v != "" {
		t.Fatalf("unset setting = %q, %v", v, err)
	}
	if err := s.SetSetting(ctx, SettingFirmwareURL, "https://a.example/fw"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := s.SetSetting(ctx, SettingFirmwareURL, "https://b.example/fw"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if v, _ := s.Setting(ctx, SettingFirmwareURL); v != "https://b.example/fw" {
		t.Fatalf("setting = %q", v)
	}
	if err := s.SetSetting(ctx, SettingFirmwareURL, ""); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if v, _ := s.Setting(ctx, SettingFirmwareURL); v != "" {
		t.Fatalf("setting should be removed, got %q", v)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knob.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if err := s.SaveAccounts(ctx, []registry.Record{{ID: "a", Token: "t"}}); err != nil {
		t.Fatalf("SaveAccounts: %v", err)
	}
	s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file missing: %v", err)
	}
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, _ := s2.LoadAccounts(ctx)
	if len(got) != 1 || got[0].Token != "t" {
		t.Fatalf("got %+v", got)
	}

	if err := s2.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got, _ := s2.LoadAccounts(ctx); len(got) != 0 {
		t.Fatalf("clear left %d accounts", len(got))
	}
}
