package team

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rust-lang/sync-team/internal/httpclient"
)

// Source supplies the desired-state snapshot. Implementations load
// and validate; they never reorder or filter.
type Source interface {
	Load() ([]Org, error)
}

// LocalSource reads one yaml file per organization from a directory.
// Files are processed in sorted name order so the loaded snapshot, and
// therefore every diff hash downstream, is reproducible.
type LocalSource struct {
	Dir string
}

func (s LocalSource) Load() ([]Org, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read team repo %s: %w", s.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("team repo %s contains no yaml org definitions", s.Dir)
	}

	orgs := make([]Org, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.Dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var org Org
		if err := yaml.Unmarshal(data, &org); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if org.Name == "" {
			org.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		if err := Validate(org); err != nil {
			return nil, fmt.Errorf("validate %s: %w", path, err)
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

// RemoteSource fetches the published desired-state snapshot as JSON
// from the team API.
type RemoteSource struct {
	URL       string
	UserAgent string
}

func (s RemoteSource) Load() ([]Org, error) {
	client := httpclient.New(s.URL, s.UserAgent, nil)
	var payload struct {
		Orgs []Org `json:"orgs"`
	}
	if err := client.Do(http.MethodGet, "v1/orgs.json", nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch team api: %w", err)
	}
	for _, org := range payload.Orgs {
		if err := Validate(org); err != nil {
			return nil, fmt.Errorf("validate org %s from team api: %w", org.Name, err)
		}
	}
	return payload.Orgs, nil
}
