// Package sidecar persists generated annotations as .txt files beside
// their images.
package sidecar

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store writes one sidecar per image. When OutputDir is empty each sidecar
// lands next to its image; otherwise all sidecars collect in OutputDir,
// which is created on first use.
type Store struct {
	OutputDir string
}

// PathFor returns the sidecar path for an image without touching the
// filesystem. The sidecar keeps the image's base name with a .txt
// extension.
func (s *Store) PathFor(imagePath string) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath)) + ".txt"
	if s.OutputDir != "" {
		return filepath.Join(s.OutputDir, base)
	}
	return filepath.Join(filepath.Dir(imagePath), base)
}

// Write stores text for imagePath as UTF-8, replacing any existing sidecar.
func (s *Store) Write(imagePath, text string) error {
	if s.OutputDir != "" {
		if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	path := s.PathFor(imagePath)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
