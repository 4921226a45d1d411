package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/weihanchu/slidecast/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Projects ---

func (s *PostgresStore) CreateProject(ctx context.Context, project *models.Project) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO projects (id, name, pdf_path, page_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		project.ID, project.Name, project.PDFPath, project.PageCount, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, pdf_path, page_count, created_at, updated_at FROM projects WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.PDFPath, &p.PageCount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, pdf_path, page_count, created_at, updated_at
		 FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.PDFPath, &p.PageCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (s *PostgresStore) RenameProject(ctx context.Context, id uuid.UUID, name string) (*models.Project, error) {
	var p models.Project
	err := s.pool.QueryRow(ctx,
		`UPDATE projects SET name = $2, updated_at = NOW() WHERE id = $1
		 RETURNING id, name, pdf_path, page_count, created_at, updated_at`, id, name,
	).Scan(&p.ID, &p.Name, &p.PDFPath, &p.PageCount, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rename project: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) SetProjectPDF(ctx context.Context, id uuid.UUID, pdfPath string, pageCount int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET pdf_path = $2, page_count = $3, updated_at = NOW() WHERE id = $1`,
		id, pdfPath, pageCount)
	if err != nil {
		return fmt.Errorf("set project pdf: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteProject(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Pages ---

// ReplacePages swaps the page set of a project in one transaction. Re-running
// the split stage replaces earlier results instead of appending to them.
func (s *PostgresStore) ReplacePages(ctx context.Context, projectID uuid.UUID, pages []*models.Page) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace pages: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM pages WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("clear pages: %w", err)
	}
	for _, page := range pages {
		if _, err := tx.Exec(ctx,
			`INSERT INTO pages (id, project_id, number, image_path, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			page.ID, page.ProjectID, page.Number, page.ImagePath, page.CreatedAt); err != nil {
			return fmt.Errorf("insert page %d: %w", page.Number, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListPages(ctx context.Context, projectID uuid.UUID) ([]*models.Page, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, number, image_path, created_at
		 FROM pages WHERE project_id = $1 ORDER BY number`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var pages []*models.Page
	for rows.Next() {
		var p models.Page
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Number, &p.ImagePath, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// --- Scripts ---

// UpsertScript writes a page script and replaces its dialogue lines wholesale.
// Script generation always regenerates a full page, so partial merges are
// never needed.
func (s *PostgresStore) UpsertScript(ctx context.Context, script *models.Script) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert script: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO scripts (id, project_id, page_number, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (project_id, page_number) DO UPDATE SET updated_at = NOW()
		 RETURNING id`,
		script.ID, script.ProjectID, script.PageNumber, script.CreatedAt, script.UpdatedAt,
	).Scan(&script.ID)
	if err != nil {
		return fmt.Errorf("upsert script: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM dialogue_lines WHERE script_id = $1`, script.ID); err != nil {
		return fmt.Errorf("clear dialogue lines: %w", err)
	}
	for i := range script.Dialogues {
		line := &script.Dialogues[i]
		line.ScriptID = script.ID
		line.Position = i
		if _, err := tx.Exec(ctx,
			`INSERT INTO dialogue_lines (id, script_id, role, content, emotion, speed, position, audio_path)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			line.ID, line.ScriptID, line.Role, line.Content, line.Emotion, line.Speed, line.Position, line.AudioPath); err != nil {
			return fmt.Errorf("insert dialogue line %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetScript(ctx context.Context, projectID uuid.UUID, pageNumber int) (*models.Script, error) {
	var sc models.Script
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, page_number, created_at, updated_at
		 FROM scripts WHERE project_id = $1 AND page_number = $2`, projectID, pageNumber,
	).Scan(&sc.ID, &sc.ProjectID, &sc.PageNumber, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get script: %w", err)
	}

	lines, err := s.dialogueLines(ctx, sc.ID)
	if err != nil {
		return nil, err
	}
	sc.Dialogues = lines
	return &sc, nil
}

func (s *PostgresStore) ListScripts(ctx context.Context, projectID uuid.UUID) ([]*models.Script, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, project_id, page_number, created_at, updated_at
		 FROM scripts WHERE project_id = $1 ORDER BY page_number`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer rows.Close()

	var scripts []*models.Script
	for rows.Next() {
		var sc models.Script
		if err := rows.Scan(&sc.ID, &sc.ProjectID, &sc.PageNumber, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan script: %w", err)
		}
		scripts = append(scripts, &sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sc := range scripts {
		lines, err := s.dialogueLines(ctx, sc.ID)
		if err != nil {
			return nil, err
		}
		sc.Dialogues = lines
	}
	return scripts, nil
}

func (s *PostgresStore) dialogueLines(ctx context.Context, scriptID uuid.UUID) ([]models.DialogueLine, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, script_id, role, content, emotion, speed, position, audio_path
		 FROM dialogue_lines WHERE script_id = $1 ORDER BY position`, scriptID)
	if err != nil {
		return nil, fmt.Errorf("list dialogue lines: %w", err)
	}
	defer rows.Close()

	var lines []models.DialogueLine
	for rows.Next() {
		var l models.DialogueLine
		if err := rows.Scan(&l.ID, &l.ScriptID, &l.Role, &l.Content, &l.Emotion, &l.Speed, &l.Position, &l.AudioPath); err != nil {
			return nil, fmt.Errorf("scan dialogue line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (s *PostgresStore) SetDialogueAudioPath(ctx context.Context, lineID uuid.UUID, audioPath string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE dialogue_lines SET audio_path = $2 WHERE id = $1`, lineID, audioPath)
	if err != nil {
		return fmt.Errorf("set dialogue audio path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, project_id, type, status, progress, current_step, total_steps, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.ProjectID, job.Type, job.Status, job.Progress,
		job.CurrentStep, job.TotalSteps, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var j models.Job
	err := s.pool.QueryRow(ctx,
		`SELECT id, project_id, type, status, progress, current_step, total_steps, error_message, started_at, completed_at, created_at, updated_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.ProjectID, &j.Type, &j.Status, &j.Progress, &j.CurrentStep, &j.TotalSteps,
		&j.ErrorMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error) {
	query := `SELECT id, project_id, type, status, progress, current_step, total_steps, error_message, started_at, completed_at, created_at, updated_at
	          FROM jobs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, filter.Type)
		argIdx++
	}
	if filter.RunningOnly {
		query += " AND status = 'running'"
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.ProjectID, &j.Type, &j.Status, &j.Progress, &j.CurrentStep,
			&j.TotalSteps, &j.ErrorMessage, &j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning, models.JobStatusFailed},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusFailed},
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error {
	params := ApplyJobUpdateOptions(opts)

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	valid := false
	for _, a := range validTransitions[currentStatus] {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid job status transition: %s -> %s", currentStatus, status)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET status = $2, updated_at = $3`
	args := []any{id, status, now}
	argIdx := 4

	if status == models.JobStatusRunning {
		// Entering running clears any stale error from a prior attempt.
		query += fmt.Sprintf(", started_at = $%d, error_message = NULL", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusCompleted || status == models.JobStatusFailed {
		query += fmt.Sprintf(", completed_at = $%d", argIdx)
		args = append(args, now)
		argIdx++
	}
	if status == models.JobStatusCompleted {
		query += ", progress = 1.0, current_step = total_steps"
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}
	if params.Progress != nil {
		query += fmt.Sprintf(", progress = $%d", argIdx)
		args = append(args, clampProgress(*params.Progress))
		argIdx++
	}
	query += " WHERE id = $1"

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// UpdateJobProgress advances in-flight progress. Progress never moves
// backwards: concurrent stale writes are absorbed by GREATEST.
func (s *PostgresStore) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress float64, currentStep int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET progress = GREATEST(progress, $2), current_step = GREATEST(current_step, $3), updated_at = NOW()
		 WHERE id = $1 AND status = 'running'`,
		id, clampProgress(progress), currentStep)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetJobTotalSteps(ctx context.Context, id uuid.UUID, totalSteps int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET total_steps = $2, updated_at = NOW() WHERE id = $1`, id, totalSteps)
	if err != nil {
		return fmt.Errorf("set job total steps: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Voice groups ---

func (s *PostgresStore) CurrentVoiceGroup(ctx context.Context) (*models.VoiceGroup, error) {
	var g models.VoiceGroup
	var rolesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT name, roles FROM voice_groups WHERE is_current = TRUE LIMIT 1`,
	).Scan(&g.Name, &rolesJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("current voice group: %w", err)
	}
	if err := json.Unmarshal(rolesJSON, &g.Roles); err != nil {
		return nil, fmt.Errorf("decode voice group roles: %w", err)
	}
	return &g, nil
}

func (s *PostgresStore) SaveVoiceGroup(ctx context.Context, group *models.VoiceGroup, makeCurrent bool) error {
	rolesJSON, err := json.Marshal(group.Roles)
	if err != nil {
		return fmt.Errorf("encode voice group roles: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save voice group: %w", err)
	}
	defer tx.Rollback(ctx)

	if makeCurrent {
		if _, err := tx.Exec(ctx, `UPDATE voice_groups SET is_current = FALSE`); err != nil {
			return fmt.Errorf("clear current voice group: %w", err)
		}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO voice_groups (name, roles, is_current)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET roles = EXCLUDED.roles, is_current = EXCLUDED.is_current`,
		group.Name, rolesJSON, makeCurrent); err != nil {
		return fmt.Errorf("save voice group: %w", err)
	}
	return tx.Commit(ctx)
}

// clampProgress bounds a progress value to the jobs-table invariant
// progress ∈ [0.0, 1.0] before it is written.
func clampProgress(p float64) float64 {
	if p < 0.0 {
		return 0.0
	}
	if p > 1.0 {
		return 1.0
	}
	return p
}

// isDuplicateKeyError checks for Postgres unique_violation (23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
