package pdfsplit

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCount(t *testing.T) {
	s := NewPopplerSplitter(72)
	s.runCmd = func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "pdfinfo", name)
		assert.Equal(t, []string{"/tmp/deck.pdf"}, args)
		return []byte("Title:          Deck\nPages:          12\nEncrypted:      no\n"), nil
	}

	n, err := s.PageCount(context.Background(), "/tmp/deck.pdf")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestPageCount_NoPagesLine(t *testing.T) {
	s := NewPopplerSplitter(72)
	s.runCmd = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Title: Deck\n"), nil
	}

	_, err := s.PageCount(context.Background(), "/tmp/deck.pdf")
	require.ErrorIs(t, err, ErrBadPDF)
}

func TestPageCount_PopplerMissing(t *testing.T) {
	s := NewPopplerSplitter(72)
	s.runCmd = func(context.Context, string, ...string) ([]byte, error) {
		return nil, &exec.Error{Name: "pdfinfo", Err: exec.ErrNotFound}
	}

	_, err := s.PageCount(context.Background(), "/tmp/deck.pdf")
	require.ErrorIs(t, err, ErrPopplerMissing)
}

func TestRenderPage(t *testing.T) {
	s := NewPopplerSplitter(150)

	var gotArgs []string
	s.runCmd = func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "pdftoppm", name)
		gotArgs = args
		return nil, nil
	}

	path, err := s.RenderPage(context.Background(), "/tmp/deck.pdf", 7, "/data/pages")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/data/pages", "page_007.png"), path)
	assert.Contains(t, gotArgs, "-singlefile")
	assert.Contains(t, gotArgs, "150")
	assert.Contains(t, gotArgs, "7")
}

func TestRenderPage_BadPDF(t *testing.T) {
	s := NewPopplerSplitter(72)
	s.runCmd = func(context.Context, string, ...string) ([]byte, error) {
		return nil, &exec.ExitError{}
	}

	_, err := s.RenderPage(context.Background(), "/tmp/deck.pdf", 1, "/data/pages")
	require.ErrorIs(t, err, ErrBadPDF)
}

func TestClassifyExecError_PassThrough(t *testing.T) {
	sentinel := errors.New("boom")
	assert.ErrorIs(t, classifyExecError(sentinel), sentinel)
}
