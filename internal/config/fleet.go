package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/followup/internal/core"
)

// Sample file names written by WriteSamples.
const (
	SampleFleetFile   = "fleet.yaml"
	SampleAuthorsFile = "authors.yaml"
)

// Files loads fleet and author roster documents from disk. Documents are
// YAML; JSON documents parse unchanged.
type Files struct{}

var _ core.ConfigSource = Files{}

// LoadFleet reads the fleet partitions (all, all_A320, new, rev).
func (Files) LoadFleet(path string) (core.Fleet, error) {
	raw, err := readLists(path)
	if err != nil {
		return core.Fleet{}, err
	}
	return core.ParseFleet(raw)
}

// LoadAuthors reads the author roster (IPC, SRM, ILLU).
func (Files) LoadAuthors(path string) (core.Authors, error) {
	raw, err := readLists(path)
	if err != nil {
		return core.Authors{}, err
	}
	return core.ParseAuthors(raw)
}

// readLists decodes a mapping of names to string lists. Scalars in the lists
// are read as strings, so unit codes like 0835 keep their leading zero.
func readLists(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	data, err := readText(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	var doc map[string][]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	out := make(map[string][]string, len(doc))
	for key, nodes := range doc {
		values := make([]string, 0, len(nodes))
		for _, n := range nodes {
			if n.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("parse %s: %q must be a list of values (line %d)", filepath.Base(path), key, n.Line)
			}
			values = append(values, n.Value)
		}
		out[key] = values
	}
	return out, nil
}

type sampleFleet struct {
	All  []string `yaml:"all"`
	A320 []string `yaml:"all_A320"`
	New  []string `yaml:"new"`
	Rev  []string `yaml:"rev"`
}

type sampleAuthors struct {
	IPC  []string `yaml:"IPC"`
	SRM  []string `yaml:"SRM"`
	ILLU []string `yaml:"ILLU"`
}

// WriteSamples writes example fleet and author files into dir and returns
// their paths. Existing files are not overwritten.
func WriteSamples(dir string) ([]string, error) {
	docs := []struct {
		name string
		v    any
	}{
		{SampleFleetFile, sampleFleet{
			All:  []string{"0835", "1207", "2737", "3708"},
			A320: []string{"2737"},
			New:  []string{"3708"},
			Rev:  []string{"1207", "2737"},
		}},
		{SampleAuthorsFile, sampleAuthors{
			IPC:  []string{"Author One", "Author Two"},
			SRM:  []string{"Author Three"},
			ILLU: []string{"Illustrator One"},
		}},
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	var paths []string
	for _, d := range docs {
		path := filepath.Join(dir, d.name)
		if _, err := os.Stat(path); err == nil {
			return paths, fmt.Errorf("%s already exists", path)
		}
		data, err := yaml.Marshal(d.v)
		if err != nil {
			return paths, fmt.Errorf("encode %s: %w", d.name, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", d.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
