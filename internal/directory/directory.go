// Package directory maps GitLab user emails to Slack handles.
//
// The Directory is read by every dispatch and replaced wholesale by the
// Refresher; readers never see a partially built mapping.
package directory

import (
	"sort"
	"sync/atomic"
)

// Directory is a read-only email -> handle snapshot that can be swapped
// atomically.
type Directory struct {
	snap atomic.Pointer[map[string]string]
}

// New returns a Directory holding a copy of initial.
func New(initial map[string]string) *Directory {
	d := &Directory{}
	d.Replace(initial)
	return d
}

// Lookup returns the handle registered for email.
func (d *Directory) Lookup(email string) (string, bool) {
	m := d.snap.Load()
	if m == nil {
		return "", false
	}
	h, ok := (*m)[email]
	return h, ok
}

// Replace installs a copy of entries as the current snapshot.
func (d *Directory) Replace(entries map[string]string) {
	m := make(map[string]string, len(entries))
	for email, handle := range entries {
		if email != "" && handle != "" {
			m[email] = handle
		}
	}
	d.snap.Store(&m)
}

// Len returns the number of known emails.
func (d *Directory) Len() int {
	m := d.snap.Load()
	if m == nil {
		return 0
	}
	return len(*m)
}

// Entry is one directory line.
type Entry struct {
	Email  string `json:"email"`
	Handle string `json:"handle"`
}

// Entries returns the snapshot sorted by email.
func (d *Directory) Entries() []Entry {
	m := d.snap.Load()
	if m == nil {
		return nil
	}
	out := make([]Entry, 0, len(*m))
	for email, handle := range *m {
		out = append(out, Entry{Email: email, Handle: handle})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}
