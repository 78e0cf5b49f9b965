package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"enrollment_sync/internal/domain/campus"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// clientEntry is one client's settings. Pointers tell "absent" from "empty".
type clientEntry struct {
	CampusID          *string `toml:"id_campus" yaml:"id_campus"`
	ScheduledSync     *string `toml:"scheduled_sync" yaml:"scheduled_sync"`
	EducationModality *string `toml:"modalidade_educacao" yaml:"modalidade_educacao"`
}

type clientsFile struct {
	// ClientList holds client names separated by newlines or commas.
	ClientList string                 `toml:"clientlist" yaml:"clientlist"`
	Clients    map[string]clientEntry `toml:"clients" yaml:"clients"`
}

var clientListSeparator = regexp.MustCompile(`[\r\n,]+`)

// FileClientStore reads the configured clients from a TOML or YAML file on
// every call, so edits take effect on the next run.
type FileClientStore struct {
	path string
}

func NewFileClientStore(path string) *FileClientStore {
	return &FileClientStore{path: path}
}

func (s *FileClientStore) Campuses(_ context.Context) ([]campus.Campus, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read clients file: %w", err)
	}
	var f clientsFile
	switch ext := strings.ToLower(filepath.Ext(s.path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("decode clients file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("decode clients file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported clients file extension %q", ext)
	}
	return f.campuses(), nil
}

// campuses keeps the clientlist order and leaves out clients missing any
// required setting.
func (f clientsFile) campuses() []campus.Campus {
	var out []campus.Campus
	for _, name := range clientListSeparator.Split(f.ClientList, -1) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		e, ok := f.Clients[name]
		if !ok || e.CampusID == nil || e.ScheduledSync == nil || e.EducationModality == nil {
			continue
		}
		out = append(out, campus.Campus{
			ID:                *e.CampusID,
			Name:              name,
			ScheduledSync:     *e.ScheduledSync,
			EducationModality: *e.EducationModality,
		})
	}
	return out
}
