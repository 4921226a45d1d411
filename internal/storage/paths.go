// Package storage lays out the on-disk data directory. Everything a project
// owns lives under <data_dir>/projects/<project_id>/.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Paths resolves file locations under the data directory.
type Paths struct {
	dataDir string
}

func NewPaths(dataDir string) Paths {
	return Paths{dataDir: dataDir}
}

func (p Paths) ProjectDir(projectID uuid.UUID) string {
	return filepath.Join(p.dataDir, "projects", projectID.String())
}

// PDFPath is where the uploaded source deck is stored.
func (p Paths) PDFPath(projectID uuid.UUID) string {
	return filepath.Join(p.ProjectDir(projectID), "source.pdf")
}

// PagesDir holds the rendered page images.
func (p Paths) PagesDir(projectID uuid.UUID) string {
	return filepath.Join(p.ProjectDir(projectID), "pages")
}

func (p Paths) PageImage(projectID uuid.UUID, page int) string {
	return filepath.Join(p.PagesDir(projectID), fmt.Sprintf("page_%03d.png", page))
}

// AudioDir holds synthesized dialogue audio, one file per dialogue line.
func (p Paths) AudioDir(projectID uuid.UUID) string {
	return filepath.Join(p.ProjectDir(projectID), "audio")
}

func (p Paths) AudioFile(projectID, lineID uuid.UUID) string {
	return filepath.Join(p.AudioDir(projectID), lineID.String()+".mp3")
}

// EnsureDir creates dir and parents if missing.
func (p Paths) EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// RemoveProject deletes everything stored for a project.
func (p Paths) RemoveProject(projectID uuid.UUID) error {
	return os.RemoveAll(p.ProjectDir(projectID))
}
