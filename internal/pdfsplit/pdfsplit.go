// Package pdfsplit renders PDF pages to PNG images using the poppler
// command line tools (pdfinfo, pdftoppm).
package pdfsplit

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Sentinel errors for PDF splitting failures.
var (
	ErrPopplerMissing = errors.New("poppler tools not installed")
	ErrBadPDF         = errors.New("unreadable pdf")
)

// Splitter renders PDF pages into per-page PNG images.
type Splitter interface {
	// PageCount returns the number of pages in the PDF at path.
	PageCount(ctx context.Context, path string) (int, error)
	// RenderPage renders one page (1-based) to outDir and returns the
	// written image path.
	RenderPage(ctx context.Context, path string, page int, outDir string) (string, error)
}

// PopplerSplitter shells out to pdfinfo and pdftoppm.
type PopplerSplitter struct {
	dpi int

	// runCmd is swappable so tests can fake the poppler binaries.
	runCmd func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewPopplerSplitter creates a splitter rendering at the given DPI.
func NewPopplerSplitter(dpi int) *PopplerSplitter {
	if dpi <= 0 {
		dpi = 72
	}
	return &PopplerSplitter{dpi: dpi, runCmd: runCommand}
}

func (s *PopplerSplitter) PageCount(ctx context.Context, path string) (int, error) {
	out, err := s.runCmd(ctx, "pdfinfo", path)
	if err != nil {
		return 0, classifyExecError(err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("%w: parsing page count: %v", ErrBadPDF, err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: no page count in pdfinfo output", ErrBadPDF)
}

func (s *PopplerSplitter) RenderPage(ctx context.Context, path string, page int, outDir string) (string, error) {
	// pdftoppm appends "-<page>.png" with the page number zero padded to
	// the document width, so render via a prefix and compute the result.
	prefix := filepath.Join(outDir, fmt.Sprintf("page_%03d", page))
	pageArg := strconv.Itoa(page)

	_, err := s.runCmd(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(s.dpi),
		"-f", pageArg,
		"-l", pageArg,
		"-singlefile",
		path, prefix)
	if err != nil {
		return "", classifyExecError(err)
	}

	return prefix + ".png", nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

func classifyExecError(err error) error {
	var execErr *exec.Error
	if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrPopplerMissing, err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%w: %v", ErrBadPDF, err)
	}
	return err
}

// Compile-time check that PopplerSplitter implements Splitter.
var _ Splitter = (*PopplerSplitter)(nil)
