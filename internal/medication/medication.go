// Package medication keeps a per-session list of medications and their
// schedule.
package medication

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMissingField  = errors.New("missing field")
	ErrNotFound      = errors.New("medication not found")
	ErrNoMedications = errors.New("no medications")
)

// Notices shown to the user.
const (
	NoticeMissingField  = "Please fill all fields"
	NoticeNoMedications = "Please add medications first"
	NoticeAdded         = "Medication added successfully"
	NoticeRemoved       = "Medication removed"
	NoticeReminders     = "Reminders enabled! You'll receive notifications at scheduled times."
)

type Medication struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Purpose   string    `json:"purpose"`
	Timing    string    `json:"timing"`
	CreatedAt time.Time `json:"created_at"`
}

// Manager is one medication list. The rows live in the shared Store and are
// removed by Clear.
type Manager struct {
	store *Store
	id    string
	now   func() time.Time
}

// NewManager binds a list id to the store.
func NewManager(store *Store, listID string) *Manager {
	return &Manager{store: store, id: listID, now: time.Now}
}

// Add stores a new entry. All three fields are required.
func (m *Manager) Add(ctx context.Context, name, purpose, timing string) (Medication, error) {
	med := Medication{
		Name:    strings.TrimSpace(name),
		Purpose: strings.TrimSpace(purpose),
		Timing:  strings.TrimSpace(timing),
	}
	for _, f := range []struct{ field, value string }{
		{"name", med.Name},
		{"purpose", med.Purpose},
		{"timing", med.Timing},
	} {
		if f.value == "" {
			return Medication{}, fmt.Errorf("%w: %s is required", ErrMissingField, f.field)
		}
	}
	med.ID = uuid.NewString()
	med.CreatedAt = m.now().UTC()
	if err := m.store.insert(ctx, m.id, med); err != nil {
		return Medication{}, err
	}
	return med, nil
}

// Remove deletes an entry from this list.
func (m *Manager) Remove(ctx context.Context, id string) error {
	ok, err := m.store.delete(ctx, m.id, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns the entries in the order they were added.
func (m *Manager) List(ctx context.Context) ([]Medication, error) {
	return m.store.list(ctx, m.id)
}

// EnableReminders confirms reminders for a non-empty list. No notification is
// actually scheduled.
func (m *Manager) EnableReminders(ctx context.Context) (string, error) {
	n, err := m.store.count(ctx, m.id)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrNoMedications
	}
	return NoticeReminders, nil
}

// Clear drops every entry of this list.
func (m *Manager) Clear(ctx context.Context) error {
	return m.store.clear(ctx, m.id)
}
