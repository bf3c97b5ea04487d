package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/finswitch/finswitch/domain/channel"
	"gopkg.in/yaml.v3"
)

// LoadFile parses one channel schema YAML document.
func LoadFile(path string) ([]channel.Channel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	var doc channel.Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if len(doc.Channels) == 0 {
		return nil, fmt.Errorf("schema %s: no channels", path)
	}
	return doc.Channels, nil
}

// LoadDir parses every .yaml/.yml file in a directory, in name order so
// reloads are deterministic.
func LoadDir(dir string) ([]channel.Channel, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("schema dir %s: no yaml files", dir)
	}

	var channels []channel.Channel
	for _, f := range files {
		chs, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		channels = append(channels, chs...)
	}
	return channels, nil
}

// Load builds a fresh registry from a schema file or directory. Duplicate
// channel ids across files are a load-time error.
func Load(path string) (*Registry, error) {
	channels, err := loadPath(path)
	if err != nil {
		return nil, err
	}
	r := New()
	if err := r.ReplaceAll(channels); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads a schema path into an existing registry as one atomic
// snapshot swap. On error the registry keeps its previous contents.
func (r *Registry) Reload(path string) error {
	channels, err := loadPath(path)
	if err != nil {
		return err
	}
	return r.ReplaceAll(channels)
}

func loadPath(path string) ([]channel.Channel, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat schema path: %w", err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}
