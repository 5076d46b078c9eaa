// Package hotkeys maps configured key chords to player actions and converts
// them to the accelerator strings desktop shells understand.
package hotkeys

import (
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/moodbox/internal/infra/config"
)

// Action identifies what a triggered binding does.
type Action string

const (
	ActionPlayPause Action = "play-pause"
	ActionNext      Action = "next"
	ActionPrevious  Action = "previous"
	ActionPlayMood  Action = "play-mood"
)

// Binding is one registered chord.
type Binding struct {
	Accelerator string
	Action      Action
	MoodID      string // ActionPlayMood only
}

// Registrar registers accelerators with the host shell. RegisterAll replaces
// the previous set wholesale.
type Registrar interface {
	RegisterAll(bindings []Binding) error
}

// Accelerator converts a key chord to accelerator syntax, e.g.
// {Ctrl, Shift, KeyP} -> "CommandOrControl+Shift+P". Browser key codes
// (KeyX, Digit5, ArrowUp) are normalized. An empty key yields "".
func Accelerator(k config.KeyConfig) string {
	if k.Key == "" {
		return ""
	}

	var parts []string
	if k.Ctrl {
		parts = append(parts, "CommandOrControl")
	}
	if k.Shift {
		parts = append(parts, "Shift")
	}
	if k.Alt {
		parts = append(parts, "Alt")
	}
	if k.Meta {
		parts = append(parts, "Super")
	}

	parts = append(parts, normalizeKey(k.Key))
	return strings.Join(parts, "+")
}

// normalizeKey strips browser key-code prefixes and renames arrows.
func normalizeKey(key string) string {
	switch {
	case strings.HasPrefix(key, "Key") && len(key) > len("Key"):
		return strings.TrimPrefix(key, "Key")
	case strings.HasPrefix(key, "Digit") && len(key) > len("Digit"):
		return strings.TrimPrefix(key, "Digit")
	}

	switch key {
	case "ArrowUp":
		return "Up"
	case "ArrowDown":
		return "Down"
	case "ArrowLeft":
		return "Left"
	case "ArrowRight":
		return "Right"
	}
	return key
}

// Bindings builds the binding set from the hotkey configuration. Chords with
// no key are skipped.
func Bindings(cfg config.HotkeysConfig) []Binding {
	var out []Binding

	add := func(k *config.KeyConfig, action Action, moodID string) {
		if k == nil {
			return
		}
		acc := Accelerator(*k)
		if acc == "" {
			return
		}
		out = append(out, Binding{Accelerator: acc, Action: action, MoodID: moodID})
	}

	add(cfg.PlayPause, ActionPlayPause, "")
	add(cfg.Next, ActionNext, "")
	add(cfg.Previous, ActionPrevious, "")
	for _, mk := range cfg.Moods {
		if mk.MoodID == "" {
			continue
		}
		kc := mk.Hotkey
		add(&kc, ActionPlayMood, mk.MoodID)
	}
	return out
}

// Register builds bindings from the configuration and hands them to the
// registrar. A nil registrar (headless deployment) is a no-op.
func Register(reg Registrar, cfg config.HotkeysConfig) error {
	if reg == nil {
		return nil
	}

	bindings := Bindings(cfg)
	if err := reg.RegisterAll(bindings); err != nil {
		return err
	}
	zlog.Info().Int("count", len(bindings)).Msg("hotkeys: bindings registered")
	return nil
}
