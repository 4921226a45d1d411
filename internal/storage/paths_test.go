package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths_Layout(t *testing.T) {
	p := NewPaths("/data")
	projectID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	lineID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	base := filepath.Join("/data", "projects", projectID.String())
	assert.Equal(t, base, p.ProjectDir(projectID))
	assert.Equal(t, filepath.Join(base, "source.pdf"), p.PDFPath(projectID))
	assert.Equal(t, filepath.Join(base, "pages", "page_007.png"), p.PageImage(projectID, 7))
	assert.Equal(t, filepath.Join(base, "audio", lineID.String()+".mp3"), p.AudioFile(projectID, lineID))
}

func TestPaths_EnsureAndRemove(t *testing.T) {
	p := NewPaths(t.TempDir())
	projectID := uuid.New()

	require.NoError(t, p.EnsureDir(p.PagesDir(projectID)))
	require.NoError(t, os.WriteFile(p.PageImage(projectID, 1), []byte("png"), 0o644))

	require.NoError(t, p.RemoveProject(projectID))
	_, err := os.Stat(p.ProjectDir(projectID))
	assert.True(t, os.IsNotExist(err))

	// Removing an already-absent project is fine.
	require.NoError(t, p.RemoveProject(projectID))
}
