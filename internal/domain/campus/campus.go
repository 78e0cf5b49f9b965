package campus

import (
	"context"
	"strings"
)

// Campus is one configured institutional site synchronized independently.
type Campus struct {
	ID                string
	Name              string
	ScheduledSync     string
	EducationModality string
}

// ScheduledSyncEnabled reports whether scheduled runs include the campus.
// Manual runs always do.
func (c Campus) ScheduledSyncEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(c.ScheduledSync)) {
	case "", "0", "false", "no", "off":
		return false
	}
	return true
}

// ConfigStore lists the campuses configured for a run. Clients missing any
// required setting are left out without an error.
type ConfigStore interface {
	Campuses(ctx context.Context) ([]Campus, error)
}

// ScheduledOnly narrows store to the campuses with scheduled sync enabled.
func ScheduledOnly(store ConfigStore) ConfigStore {
	return scheduledStore{store}
}

type scheduledStore struct {
	ConfigStore
}

func (s scheduledStore) Campuses(ctx context.Context) ([]Campus, error) {
	all, err := s.ConfigStore.Campuses(ctx)
	if err != nil {
		return nil, err
	}
	enabled := make([]Campus, 0, len(all))
	for _, c := range all {
		if c.ScheduledSyncEnabled() {
			enabled = append(enabled, c)
		}
	}
	return enabled, nil
}
