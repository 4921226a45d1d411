package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weihanchu/slidecast/pkg/models"
)

func TestNewProvider_DeterministicScript(t *testing.T) {
	p := NewProvider()
	assert.Equal(t, "mock", p.Name())

	lines, err := p.GenerateScript(context.Background(), models.ScriptRequest{
		PageNumber: 2,
		TotalPages: 5,
		Roles:      []string{"host", "narrator"},
	})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "host", lines[0].Role)
	assert.Contains(t, lines[0].Content, "slide 2 of 5")
	assert.Equal(t, 1, lines[1].Position)
}

func TestNewProvider_FallsBackToNarrator(t *testing.T) {
	p := NewProvider()

	lines, err := p.GenerateScript(context.Background(), models.ScriptRequest{PageNumber: 1, TotalPages: 1})
	require.NoError(t, err)
	assert.Equal(t, models.RoleNarrator, lines[0].Role)
}

func TestNewFailingProvider(t *testing.T) {
	boom := errors.New("inference exploded")
	p := NewFailingProvider(boom)

	_, err := p.GenerateScript(context.Background(), models.ScriptRequest{})
	assert.ErrorIs(t, err, boom)
}
