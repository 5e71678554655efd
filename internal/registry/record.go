package registry

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Field limits applied when records are written. In memory, values are
// kept whole.
const (
	MaxTokenLen = 512
	MaxNameLen  = 64
	MaxIDLen    = 64
)

// Record is the persisted form of one account.
type Record struct {
	Name             string `json:"name"`
	ID               string `json:"id"`
	Token            string `json:"token"`
	SelectedDeviceID string `json:"selectedDeviceId"`
	Selected         bool   `json:"selected"`
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// Records captures the accounts in login order. The active account is
// flagged as selected and its current device is written out.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, len(r.users))
	for _, u := range r.users {
		dev := u.SelectedDeviceID
		selected := u.ID == r.activeUser
		if selected && r.activeDevice != "" {
			dev = r.activeDevice
		}
		out = append(out, Record{
			Name:             truncate(u.DisplayName, MaxNameLen),
			ID:               truncate(u.ID, MaxIDLen),
			Token:            truncate(u.RefreshToken, MaxTokenLen),
			SelectedDeviceID: truncate(dev, MaxIDLen),
			Selected:         selected,
		})
	}
	return out
}

// Restore replaces the registry contents with records. Without a selected
// record the first one becomes active.
func (r *Registry) Restore(records []Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = r.users[:0]
	r.devices = nil
	r.activeUser, r.activeDevice = "", ""
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.ID == "" || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		r.users = append(r.users, User{
			ID:               rec.ID,
			DisplayName:      rec.Name,
			RefreshToken:     rec.Token,
			SelectedDeviceID: rec.SelectedDeviceID,
		})
		if rec.Selected && r.activeUser == "" {
			r.activeUser = rec.ID
			r.activeDevice = rec.SelectedDeviceID
		}
	}
	if r.activeUser == "" && len(r.users) > 0 {
		r.activeUser = r.users[0].ID
		r.activeDevice = r.users[0].SelectedDeviceID
	}
}

// Encode serializes the records as a JSON array.
func (r *Registry) Encode() ([]byte, error) {
	return json.Marshal(r.Records())
}

// Decode restores the registry from a JSON array produced by Encode.
func (r *Registry) Decode(data []byte) error {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode accounts: %w", err)
	}
	r.Restore(records)
	return nil
}
