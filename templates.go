package main

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/bodul/kryssord/puzzle"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// Template is a starting grid a new editing session can be created from.
type Template struct {
	ID       string       `yaml:"id" json:"id"`
	Title    string       `yaml:"title" json:"title"`
	CellSize int          `yaml:"cellSize" json:"cellSize"`
	Grid     []string     `yaml:"grid" json:"grid"`
	Clues    puzzle.Clues `yaml:"clues" json:"clues"`
}

// Puzzle builds a numbered puzzle document with the given ID.
func (t *Template) Puzzle(id string) (*puzzle.Traditional, error) {
	grid, err := puzzle.ParseGrid(t.Grid)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", t.ID, err)
	}
	p := puzzle.NewTraditional(id, t.Title, grid, t.Clues)
	if t.CellSize > 0 {
		p.CellSize = t.CellSize
	}
	return p, nil
}

// Templates indexes the templates by ID.
type Templates map[string]*Template

// LoadTemplates parses every YAML file in fsys under dir.
func LoadTemplates(fsys fs.FS, dir string) (Templates, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	out := make(Templates, len(files))
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		if t.ID == "" {
			return nil, fmt.Errorf("parse %s: missing id", name)
		}
		if _, err := t.Puzzle(t.ID); err != nil {
			return nil, err
		}
		out[t.ID] = &t
	}
	return out, nil
}

// BuiltinTemplates loads the templates compiled into the binary.
func BuiltinTemplates() (Templates, error) {
	return LoadTemplates(templateFS, "templates")
}

// List returns the templates sorted by ID.
func (ts Templates) List() []*Template {
	list := make([]*Template, 0, len(ts))
	for _, t := range ts {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
