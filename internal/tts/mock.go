package tts

import "context"

// MockSynthesizer satisfies Synthesizer for testing and offline runs.
type MockSynthesizer struct {
	Name_          string
	SynthesizeFunc func(ctx context.Context, req SpeechRequest) ([]byte, error)
}

func (m *MockSynthesizer) Name() string { return m.Name_ }

func (m *MockSynthesizer) Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	return nil, nil
}

// NewMockSynthesizer returns a synthesizer producing a fixed one-second
// silent MP3 frame regardless of input.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{
		Name_: "mock",
		SynthesizeFunc: func(_ context.Context, _ SpeechRequest) ([]byte, error) {
			return silentFrame(), nil
		},
	}
}

// NewFailingSynthesizer returns a synthesizer that always returns err.
func NewFailingSynthesizer(err error) *MockSynthesizer {
	return &MockSynthesizer{
		Name_: "mock-failing",
		SynthesizeFunc: func(_ context.Context, _ SpeechRequest) ([]byte, error) {
			return nil, err
		},
	}
}

// silentFrame is a minimal valid MPEG-1 Layer III frame header plus padding.
func silentFrame() []byte {
	frame := make([]byte, 417)
	frame[0] = 0xFF
	frame[1] = 0xFB
	frame[2] = 0x90
	return frame
}

// Compile-time check that MockSynthesizer implements Synthesizer.
var _ Synthesizer = (*MockSynthesizer)(nil)
