// Package prompts manages system prompt templates stored as plain .txt
// files. The file name without extension is the template name. An optional
// first line of the form "[format:tag]" or "[format:captioning]" records
// the template's output format; a file without the header is a captioning
// template.
package prompts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Format describes what kind of output a template asks the model for.
type Format string

const (
	FormatTag        Format = "tag"
	FormatCaptioning Format = "captioning"
)

const formatHeaderPrefix = "[format:"

// Template is one named system prompt.
type Template struct {
	Name   string
	Prompt string
	Format Format
}

// Store keeps templates as .txt files under Dir.
type Store struct {
	Dir string
}

// NewStore opens (creating if needed) the template directory and seeds the
// stock templates when it holds none.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create prompts directory: %w", err)
	}
	s := &Store{Dir: dir}
	if err := s.EnsureDefaults(); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureDefaults writes the stock templates, but only into a directory
// that contains no templates at all. Existing files are never overwritten.
func (s *Store) EnsureDefaults() error {
	names, err := s.Names()
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return nil
	}

	for _, tmpl := range defaultTemplates {
		if err := s.writeFile(tmpl.Name, tmpl.Prompt, tmpl.Format); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the sorted template names.
func (s *Store) Names() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".txt"))
	}
	return names, nil
}

// Get reads one template. The format header, when present, is stripped
// from the returned prompt.
func (s *Store) Get(name string) (Template, error) {
	raw, err := os.ReadFile(s.path(name))
	if err != nil {
		return Template{}, fmt.Errorf("failed to read template %q: %w", name, err)
	}

	prompt, format := parseTemplate(string(raw))
	return Template{Name: name, Prompt: prompt, Format: format}, nil
}

// Save adds or updates a template. When the caller passes FormatCaptioning
// (the default) for an existing template, the stored format is kept so an
// update does not silently reset an explicit tag format.
func (s *Store) Save(name, prompt string, format Format) error {
	if name == "" || prompt == "" {
		return errors.New("template name and prompt are required")
	}
	if format == FormatCaptioning {
		if existing, err := s.Get(name); err == nil {
			format = existing.Format
		}
	}
	return s.writeFile(name, prompt, format)
}

// Delete removes a template.
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		return fmt.Errorf("failed to delete template %q: %w", name, err)
	}
	return nil
}

// IsDefault reports whether name is one of the stock templates.
func IsDefault(name string) bool {
	for _, tmpl := range defaultTemplates {
		if tmpl.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) path(name string) string {
	return filepath.Join(s.Dir, sanitizeName(name)+".txt")
}

func (s *Store) writeFile(name, prompt string, format Format) error {
	content := fmt.Sprintf("%s%s]\n%s", formatHeaderPrefix, format, prompt)
	if err := os.WriteFile(s.path(name), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write template %q: %w", name, err)
	}
	return nil
}

// sanitizeName keeps template names usable as file names.
func sanitizeName(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return replacer.Replace(name)
}

func parseTemplate(raw string) (string, Format) {
	if strings.HasPrefix(raw, formatHeaderPrefix) {
		if idx := strings.Index(raw, "\n"); idx != -1 {
			header := raw[:idx]
			if strings.HasSuffix(header, "]") {
				format := Format(header[len(formatHeaderPrefix) : len(header)-1])
				return raw[idx+1:], format
			}
		}
	}
	return raw, FormatCaptioning
}
