package models

import "context"

// ScriptRequest asks a provider to narrate one slide page. ImagePNG is the
// rendered page; Context carries the dialogue of earlier pages so the
// narration flows; Roles constrains which speakers may appear.
type ScriptRequest struct {
	PageNumber int
	TotalPages int
	ImagePNG   []byte
	Roles      []string
	Context    string
}

// ScriptProvider generates dialogue lines for a slide page.
type ScriptProvider interface {
	Name() string
	GenerateScript(ctx context.Context, req ScriptRequest) ([]DialogueLine, error)
}
