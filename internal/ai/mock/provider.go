package mock

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/weihanchu/slidecast/pkg/models"
)

// MockProvider satisfies models.ScriptProvider for testing and offline runs.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, req models.ScriptRequest) ([]models.DialogueLine, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) GenerateScript(ctx context.Context, req models.ScriptRequest) ([]models.DialogueLine, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return nil, nil
}

// NewProvider returns a MockProvider that produces a short deterministic
// script per page using the first allowed role.
func NewProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, req models.ScriptRequest) ([]models.DialogueLine, error) {
			role := models.RoleNarrator
			if len(req.Roles) > 0 {
				role = req.Roles[0]
			}
			return []models.DialogueLine{
				{
					ID:      uuid.New(),
					Role:    role,
					Content: fmt.Sprintf("This is slide %d of %d.", req.PageNumber, req.TotalPages),
					Emotion: models.EmotionAuto,
					Speed:   models.SpeedNormal,
				},
				{
					ID:       uuid.New(),
					Role:     role,
					Content:  "Let us walk through what it shows.",
					Emotion:  models.EmotionNeutral,
					Speed:    models.SpeedNormal,
					Position: 1,
				},
			}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.ScriptRequest) ([]models.DialogueLine, error) {
			return nil, err
		},
	}
}

// Compile-time check that MockProvider implements ScriptProvider.
var _ models.ScriptProvider = (*MockProvider)(nil)
