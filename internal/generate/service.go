// Package generate runs the three pipeline stages: splitting the uploaded
// deck into page images, narrating each page with the script provider, and
// synthesizing audio for every dialogue line. Each stage is dispatched as a
// background goroutine tracked by a job; callers poll the job for progress.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/internal/jobs"
	"github.com/weihanchu/slidecast/internal/pdfsplit"
	"github.com/weihanchu/slidecast/internal/storage"
	"github.com/weihanchu/slidecast/internal/store"
	"github.com/weihanchu/slidecast/internal/tts"
	"github.com/weihanchu/slidecast/pkg/models"
)

// Sentinel errors for stage preconditions.
var (
	ErrNoPDF     = errors.New("project has no uploaded pdf")
	ErrNoPages   = errors.New("project has no split pages")
	ErrNoScripts = errors.New("project has no generated scripts")
)

// contextBudget caps the prior-page dialogue carried into each script
// request so prompts stay within provider limits.
const contextBudget = 4000

// Service orchestrates the generation stages.
type Service struct {
	store    store.Store
	jobs     *jobs.Service
	provider models.ScriptProvider
	synth    tts.Synthesizer
	splitter pdfsplit.Splitter
	paths    storage.Paths
	timeout  time.Duration
}

// NewService creates a generation service. timeout bounds a single
// script-provider call; split and audio stages use the synthesizer's and
// splitter's own timeouts.
func NewService(st store.Store, js *jobs.Service, provider models.ScriptProvider,
	synth tts.Synthesizer, splitter pdfsplit.Splitter, paths storage.Paths,
	timeout time.Duration) *Service {
	return &Service{
		store:    st,
		jobs:     js,
		provider: provider,
		synth:    synth,
		splitter: splitter,
		paths:    paths,
		timeout:  timeout,
	}
}

// StartSplit creates a page-split job for the project and dispatches the
// work in a background goroutine. Returns the pending job immediately.
func (s *Service) StartSplit(ctx context.Context, projectID uuid.UUID) (*models.Job, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.PDFPath == nil {
		return nil, ErrNoPDF
	}

	job, err := s.jobs.Create(ctx, projectID, models.JobTypePageSplit, 0)
	if err != nil {
		return nil, err
	}

	go s.runSplit(job.ID, project)
	return job, nil
}

// runSplit renders every PDF page to PNG. The page count is only known
// after probing, so total steps are recorded when the job starts running.
func (s *Service) runSplit(jobID uuid.UUID, project *models.Project) {
	ctx := context.Background()
	defer s.recoverJob(ctx, jobID)

	total, err := s.splitter.PageCount(ctx, *project.PDFPath)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("reading page count: %v", err))
		return
	}
	if err := s.jobs.Start(ctx, jobID, total); err != nil {
		slog.Error("starting split job", "job_id", jobID, "error", err)
		return
	}

	pagesDir := s.paths.PagesDir(project.ID)
	if err := s.paths.EnsureDir(pagesDir); err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("creating pages dir: %v", err))
		return
	}

	pages := make([]*models.Page, 0, total)
	for num := 1; num <= total; num++ {
		if s.jobs.Cancelled(ctx, jobID) {
			slog.Info("split job cancelled", "job_id", jobID, "page", num)
			return
		}

		imagePath, err := s.splitter.RenderPage(ctx, *project.PDFPath, num, pagesDir)
		if err != nil {
			s.failJob(ctx, jobID, fmt.Sprintf("rendering page %d: %v", num, err))
			return
		}

		pages = append(pages, &models.Page{
			ID:        uuid.New(),
			ProjectID: project.ID,
			Number:    num,
			ImagePath: imagePath,
			CreatedAt: time.Now().UTC(),
		})
		if err := s.jobs.Advance(ctx, jobID, num, total); err != nil {
			slog.Warn("advancing split job", "job_id", jobID, "error", err)
		}
	}

	if err := s.store.ReplacePages(ctx, project.ID, pages); err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("storing pages: %v", err))
		return
	}
	if err := s.store.SetProjectPDF(ctx, project.ID, *project.PDFPath, total); err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("recording page count: %v", err))
		return
	}

	if err := s.jobs.Complete(ctx, jobID); err != nil {
		slog.Error("completing split job", "job_id", jobID, "error", err)
	}
	slog.Info("split finished", "job_id", jobID, "project_id", project.ID, "pages", total)
}

// StartScripts creates a script-generation job covering every split page.
func (s *Service) StartScripts(ctx context.Context, projectID uuid.UUID) (*models.Job, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	pages, err := s.store.ListPages(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	group, err := s.store.CurrentVoiceGroup(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading voice group: %w", err)
	}

	job, err := s.jobs.Create(ctx, projectID, models.JobTypeScriptGeneration, len(pages))
	if err != nil {
		return nil, err
	}

	go s.runScripts(job.ID, projectID, pages, groupRoles(group))
	return job, nil
}

func (s *Service) runScripts(jobID, projectID uuid.UUID, pages []*models.Page, roles []string) {
	ctx := context.Background()
	defer s.recoverJob(ctx, jobID)

	total := len(pages)
	if err := s.jobs.Start(ctx, jobID, total); err != nil {
		slog.Error("starting script job", "job_id", jobID, "error", err)
		return
	}

	var priorDialogue strings.Builder
	for i, page := range pages {
		if s.jobs.Cancelled(ctx, jobID) {
			slog.Info("script job cancelled", "job_id", jobID, "page", page.Number)
			return
		}

		image, err := os.ReadFile(page.ImagePath)
		if err != nil {
			s.failJob(ctx, jobID, fmt.Sprintf("reading page %d image: %v", page.Number, err))
			return
		}

		genCtx, cancel := context.WithTimeout(ctx, s.timeout)
		lines, err := s.provider.GenerateScript(genCtx, models.ScriptRequest{
			PageNumber: page.Number,
			TotalPages: total,
			ImagePNG:   image,
			Roles:      roles,
			Context:    tailString(priorDialogue.String(), contextBudget),
		})
		cancel()
		if err != nil {
			s.failJob(ctx, jobID, fmt.Sprintf("generating script for page %d: %v", page.Number, err))
			return
		}

		script := &models.Script{
			ID:         uuid.New(),
			ProjectID:  projectID,
			PageNumber: page.Number,
			Dialogues:  lines,
		}
		for j := range script.Dialogues {
			script.Dialogues[j].ScriptID = script.ID
		}
		if err := s.store.UpsertScript(ctx, script); err != nil {
			s.failJob(ctx, jobID, fmt.Sprintf("storing script for page %d: %v", page.Number, err))
			return
		}

		appendDialogue(&priorDialogue, page.Number, lines)
		if err := s.jobs.Advance(ctx, jobID, i+1, total); err != nil {
			slog.Warn("advancing script job", "job_id", jobID, "error", err)
		}
	}

	if err := s.jobs.Complete(ctx, jobID); err != nil {
		slog.Error("completing script job", "job_id", jobID, "error", err)
	}
	slog.Info("script generation finished", "job_id", jobID, "project_id", projectID, "pages", total)
}

// StartAudio creates an audio-generation job covering every dialogue line of
// every script. One step per line.
func (s *Service) StartAudio(ctx context.Context, projectID uuid.UUID) (*models.Job, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	scripts, err := s.store.ListScripts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, sc := range scripts {
		total += len(sc.Dialogues)
	}
	if total == 0 {
		return nil, ErrNoScripts
	}

	group, err := s.store.CurrentVoiceGroup(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading voice group: %w", err)
	}

	job, err := s.jobs.Create(ctx, projectID, models.JobTypeAudioGeneration, total)
	if err != nil {
		return nil, err
	}

	go s.runAudio(job.ID, projectID, scripts, group.Roles, total)
	return job, nil
}

func (s *Service) runAudio(jobID, projectID uuid.UUID, scripts []*models.Script, voices map[string]string, total int) {
	ctx := context.Background()
	defer s.recoverJob(ctx, jobID)

	if err := s.jobs.Start(ctx, jobID, total); err != nil {
		slog.Error("starting audio job", "job_id", jobID, "error", err)
		return
	}

	audioDir := s.paths.AudioDir(projectID)
	if err := s.paths.EnsureDir(audioDir); err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("creating audio dir: %v", err))
		return
	}

	step := 0
	for _, script := range scripts {
		for _, line := range script.Dialogues {
			if s.jobs.Cancelled(ctx, jobID) {
				slog.Info("audio job cancelled", "job_id", jobID, "page", script.PageNumber)
				return
			}

			audio, err := s.synth.Synthesize(ctx, tts.SpeechRequest{
				Text:    line.Content,
				Role:    line.Role,
				Emotion: line.Emotion,
				Speed:   line.Speed,
				Voices:  voices,
			})
			if err != nil {
				s.failJob(ctx, jobID, fmt.Sprintf("synthesizing page %d line %d: %v",
					script.PageNumber, line.Position, err))
				return
			}

			audioPath := s.paths.AudioFile(projectID, line.ID)
			if err := os.WriteFile(audioPath, audio, 0o644); err != nil {
				s.failJob(ctx, jobID, fmt.Sprintf("writing audio file: %v", err))
				return
			}
			if err := s.store.SetDialogueAudioPath(ctx, line.ID, audioPath); err != nil {
				s.failJob(ctx, jobID, fmt.Sprintf("recording audio path: %v", err))
				return
			}

			step++
			if err := s.jobs.Advance(ctx, jobID, step, total); err != nil {
				slog.Warn("advancing audio job", "job_id", jobID, "error", err)
			}
		}
	}

	if err := s.jobs.Complete(ctx, jobID); err != nil {
		slog.Error("completing audio job", "job_id", jobID, "error", err)
	}
	slog.Info("audio generation finished", "job_id", jobID, "project_id", projectID, "lines", total)
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, message string) {
	slog.Error("generation stage failed", "job_id", jobID, "error", message)
	if err := s.jobs.Fail(ctx, jobID, message); err != nil {
		slog.Error("marking job failed", "job_id", jobID, "error", err)
	}
}

func (s *Service) recoverJob(ctx context.Context, jobID uuid.UUID) {
	if r := recover(); r != nil {
		slog.Error("panic in generation stage", "job_id", jobID, "error", r)
		_ = s.jobs.Fail(ctx, jobID, fmt.Sprintf("panic: %v", r))
	}
}

// groupRoles returns the group's role names sorted with the narrator first
// so providers see a stable ordering.
func groupRoles(group *models.VoiceGroup) []string {
	roles := make([]string, 0, len(group.Roles))
	for role := range group.Roles {
		if role == models.RoleNarrator {
			continue
		}
		roles = append(roles, role)
	}
	sort.Strings(roles)
	if _, ok := group.Roles[models.RoleNarrator]; ok {
		roles = append([]string{models.RoleNarrator}, roles...)
	}
	return roles
}

// appendDialogue records one page's lines for use as context on later pages.
func appendDialogue(b *strings.Builder, pageNumber int, lines []models.DialogueLine) {
	fmt.Fprintf(b, "Page %d:\n", pageNumber)
	for _, line := range lines {
		fmt.Fprintf(b, "%s: %s\n", line.Role, line.Content)
	}
}

// tailString keeps the last maxBytes of s without splitting UTF-8 runes.
func tailString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	start := len(s) - maxBytes
	for start < len(s) && s[start]&0xC0 == 0x80 {
		start++
	}
	return s[start:]
}
