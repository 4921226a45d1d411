package models

// RoleNarrator is the role every voice group must map; unknown roles fall
// back to its voice at synthesis time.
const RoleNarrator = "narrator"

// VoiceGroup maps dialogue roles to TTS voice ids. Exactly one group is
// current at a time; the script provider constrains generated roles to the
// keys of the current group.
type VoiceGroup struct {
	Name  string            `json:"name"`
	Roles map[string]string `json:"roles"`
}
