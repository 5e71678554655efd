// Package registry tracks the known accounts and playback devices and which
// of them are currently selected.
//
// Selections are held by id and resolved on every lookup, so replacing the
// device list can never leave a selection pointing at a stale entry.
package registry

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/tunez/knob/internal/remote"
)

const provisionalPrefix = "pending-"

type User struct {
	ID               string
	DisplayName      string
	RefreshToken     string
	SelectedDeviceID string
}

// Provisional reports whether the user was registered before its service id
// was known.
func (u User) Provisional() bool { return IsProvisional(u.ID) }

type Device struct {
	ID   string
	Name string
	Type string
	// Volume is -1 when the device does not report one.
	Volume int
	// Active is the service's view of which device is playing.
	Active bool
}

// NewProvisionalID returns an id for an account whose profile has not been
// fetched yet.
func NewProvisionalID() string { return provisionalPrefix + uuid.NewString() }

func IsProvisional(id string) bool { return strings.HasPrefix(id, provisionalPrefix) }

// DevicesFrom converts a device listing.
func DevicesFrom(ds []remote.Device) []Device {
	usable := lo.Filter(ds, func(d remote.Device, _ int) bool { return d.ID != "" })
	return lo.Map(usable, func(d remote.Device, _ int) Device {
		return Device{ID: d.ID, Name: d.Name, Type: d.Type, Volume: d.Volume(), Active: d.IsActive}
	})
}

// Registry is written by the sync worker and read by the UI.
type Registry struct {
	mu           sync.RWMutex
	users        []User
	devices      []Device
	activeUser   string
	activeDevice string
}

func New() *Registry { return &Registry{} }

func (r *Registry) Users() []User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]User(nil), r.users...)
}

func (r *Registry) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Device(nil), r.devices...)
}

func (r *Registry) User(id string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userLocked(id)
}

func (r *Registry) userLocked(id string) (User, bool) {
	if id == "" {
		return User{}, false
	}
	return lo.Find(r.users, func(u User) bool { return u.ID == id })
}

func (r *Registry) userIndex(id string) int {
	_, idx, ok := lo.FindIndexOf(r.users, func(u User) bool { return u.ID == id })
	if !ok {
		return -1
	}
	return idx
}

// ActiveUser resolves the active account.
func (r *Registry) ActiveUser() (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userLocked(r.activeUser)
}

// ActiveDevice resolves the active device against the current device list.
func (r *Registry) ActiveDevice() (Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeDevice == "" {
		return Device{}, false
	}
	return lo.Find(r.devices, func(d Device) bool { return d.ID == r.activeDevice })
}

// ActiveDeviceID is the selected device id, which may refer to a device that
// has not been listed yet after a restart.
func (r *Registry) ActiveDeviceID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeDevice
}

// AddUser registers u, or updates the token and name of an existing account
// with the same id. The first account added becomes active.
func (r *Registry) AddUser(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.userIndex(u.ID); i >= 0 {
		r.users[i].RefreshToken = u.RefreshToken
		if u.DisplayName != "" {
			r.users[i].DisplayName = u.DisplayName
		}
		return
	}
	r.users = append(r.users, u)
	if r.activeUser == "" {
		r.activeUser = u.ID
		r.activeDevice = u.SelectedDeviceID
	}
}

// SetActiveUser switches the active account and loads its device selection.
// The device list belongs to the previous account and is dropped.
func (r *Registry) SetActiveUser(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.userLocked(id)
	if !ok {
		return false
	}
	if r.activeUser != id {
		r.devices = nil
	}
	r.activeUser = id
	r.activeDevice = u.SelectedDeviceID
	return true
}

// SetActiveDevice selects a listed device and remembers it on the active
// account.
func (r *Registry) SetActiveDevice(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !lo.ContainsBy(r.devices, func(d Device) bool { return d.ID == id }) {
		return false
	}
	r.activeDevice = id
	if i := r.userIndex(r.activeUser); i >= 0 {
		r.users[i].SelectedDeviceID = id
	}
	return true
}

// ClearActiveDevice drops the device selection but keeps the account's
// remembered preference.
func (r *Registry) ClearActiveDevice() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeDevice = ""
}

// ReplaceDevices installs a fresh device listing. A selection missing from
// the listing is cleared. Without a selection the account's remembered
// device is used when present, otherwise the device the service reports as
// active.
func (r *Registry) ReplaceDevices(devs []Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = append([]Device(nil), devs...)
	has := func(id string) bool {
		return id != "" && lo.ContainsBy(r.devices, func(d Device) bool { return d.ID == id })
	}
	if !has(r.activeDevice) {
		r.activeDevice = ""
	}
	if r.activeDevice != "" {
		return
	}
	i := r.userIndex(r.activeUser)
	if i >= 0 && has(r.users[i].SelectedDeviceID) {
		r.activeDevice = r.users[i].SelectedDeviceID
		return
	}
	if d, ok := lo.Find(r.devices, func(d Device) bool { return d.Active }); ok {
		r.activeDevice = d.ID
		if i >= 0 {
			r.users[i].SelectedDeviceID = d.ID
		}
	}
}

// SetDeviceVolume updates the cached volume of a listed device.
func (r *Registry) SetDeviceVolume(id string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.devices {
		if r.devices[i].ID == id {
			r.devices[i].Volume = percent
		}
	}
}

// UpdateToken stores a rotated refresh token.
func (r *Registry) UpdateToken(id, token string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.userIndex(id)
	if i < 0 {
		return false
	}
	r.users[i].RefreshToken = token
	return true
}

// Rekey gives a provisional account its service id. When an account with
// that id is already known, the two are merged: the newer token wins and
// the existing entry keeps its position.
func (r *Registry) Rekey(oldID, newID, displayName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.userIndex(oldID)
	if i < 0 || newID == "" {
		return false
	}
	if oldID != newID {
		if j := r.userIndex(newID); j >= 0 {
			r.users[j].RefreshToken = r.users[i].RefreshToken
			if r.users[j].SelectedDeviceID == "" {
				r.users[j].SelectedDeviceID = r.users[i].SelectedDeviceID
			}
			r.users = append(r.users[:i], r.users[i+1:]...)
			i = r.userIndex(newID)
		} else {
			r.users[i].ID = newID
		}
		if r.activeUser == oldID {
			r.activeUser = newID
		}
	}
	if displayName != "" {
		r.users[i].DisplayName = displayName
	}
	return true
}

// RemoveUser forgets an account. Removing the active account clears both
// selections and the device list. It reports whether the account existed.
func (r *Registry) RemoveUser(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.userIndex(id)
	if i < 0 {
		return false
	}
	r.users = append(r.users[:i], r.users[i+1:]...)
	if r.activeUser == id {
		r.activeUser = ""
		r.activeDevice = ""
		r.devices = nil
	}
	return true
}

// Len is the number of known accounts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
