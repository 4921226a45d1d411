package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	RenameProject(ctx context.Context, id uuid.UUID, name string) (*models.Project, error)
	SetProjectPDF(ctx context.Context, id uuid.UUID, pdfPath string, pageCount int) error
	DeleteProject(ctx context.Context, id uuid.UUID) error

	ReplacePages(ctx context.Context, projectID uuid.UUID, pages []*models.Page) error
	ListPages(ctx context.Context, projectID uuid.UUID) ([]*models.Page, error)

	UpsertScript(ctx context.Context, script *models.Script) error
	GetScript(ctx context.Context, projectID uuid.UUID, pageNumber int) (*models.Script, error)
	ListScripts(ctx context.Context, projectID uuid.UUID) ([]*models.Script, error)
	SetDialogueAudioPath(ctx context.Context, lineID uuid.UUID, audioPath string) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string, opts ...JobUpdateOption) error
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress float64, currentStep int) error
	SetJobTotalSteps(ctx context.Context, id uuid.UUID, totalSteps int) error

	CurrentVoiceGroup(ctx context.Context) (*models.VoiceGroup, error)
	SaveVoiceGroup(ctx context.Context, group *models.VoiceGroup, makeCurrent bool) error
}

// JobFilter narrows ListJobs. Zero value lists everything, newest first.
type JobFilter struct {
	Type        string
	RunningOnly bool
	Limit       int
}

// JobUpdateParams is the resolved form of a set of JobUpdateOptions.
// Exported so alternative Store implementations can honor the options.
type JobUpdateParams struct {
	ErrorMessage *string
	Progress     *float64
}

type JobUpdateOption func(*JobUpdateParams)

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdateParams) {
		p.ErrorMessage = &msg
	}
}

func WithProgress(progress float64) JobUpdateOption {
	return func(p *JobUpdateParams) {
		p.Progress = &progress
	}
}

// ApplyJobUpdateOptions folds opts into their effective values.
func ApplyJobUpdateOptions(opts []JobUpdateOption) JobUpdateParams {
	var params JobUpdateParams
	for _, opt := range opts {
		opt(&params)
	}
	return params
}
