// Package prompt holds the static mapping from a conversational mode and
// response style to the system instruction sent to the generation backend.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"promptmaster/internal/models"
)

// ErrConfigNotFound reports a (mode, style) pair that is not registered.
// Callers should treat it as a UI/catalog mismatch, not a transient failure.
var ErrConfigNotFound = errors.New("prompt config not found")

// Config is the instruction bundle for one (mode, style) pair.
type Config struct {
	Label             string `json:"label"`
	Description       string `json:"description"`
	SystemInstruction string `json:"system_instruction"`
}

// StyleDefinition registers one style of a mode.
type StyleDefinition struct {
	Style  models.Style
	Config Config
}

// ModeDefinition registers a mode, its greeting, and its styles in
// presentation order.
type ModeDefinition struct {
	Mode        models.Mode
	Label       string
	Description string
	Greeting    string
	Styles      []StyleDefinition
}

type modeEntry struct {
	label       string
	description string
	greeting    string
	styles      []models.Style
	configs     map[models.Style]Config
}

// Catalog is an immutable two-level table: mode -> style -> Config.
// It is safe for concurrent use.
type Catalog struct {
	modes   []models.Mode
	entries map[models.Mode]*modeEntry
}

// New builds a catalog from the definitions and validates it.
func New(defs []ModeDefinition) (*Catalog, error) {
	c := &Catalog{entries: make(map[models.Mode]*modeEntry, len(defs))}
	for _, def := range defs {
		if _, dup := c.entries[def.Mode]; dup {
			return nil, fmt.Errorf("duplicate mode %s", def.Mode)
		}
		entry := &modeEntry{
			label:       def.Label,
			description: def.Description,
			greeting:    def.Greeting,
			styles:      make([]models.Style, 0, len(def.Styles)),
			configs:     make(map[models.Style]Config, len(def.Styles)),
		}
		for _, sd := range def.Styles {
			if _, dup := entry.configs[sd.Style]; dup {
				return nil, fmt.Errorf("mode %s: duplicate style %s", def.Mode, sd.Style)
			}
			entry.styles = append(entry.styles, sd.Style)
			entry.configs[sd.Style] = sd.Config
		}
		c.modes = append(c.modes, def.Mode)
		c.entries[def.Mode] = entry
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// MustNew is New for package-level tables; it panics on an invalid table.
func MustNew(defs []ModeDefinition) *Catalog {
	c, err := New(defs)
	if err != nil {
		panic(fmt.Sprintf("prompt catalog: %v", err))
	}
	return c
}

// Validate checks completeness: every mode has at least one style and a
// greeting, every style has a usable config.
func (c *Catalog) Validate() error {
	if len(c.modes) == 0 {
		return errors.New("catalog has no modes")
	}
	for _, mode := range c.modes {
		entry := c.entries[mode]
		if len(entry.styles) == 0 {
			return fmt.Errorf("mode %s has no styles", mode)
		}
		if strings.TrimSpace(entry.greeting) == "" {
			return fmt.Errorf("mode %s has no greeting", mode)
		}
		for _, style := range entry.styles {
			cfg := entry.configs[style]
			if strings.TrimSpace(cfg.Label) == "" {
				return fmt.Errorf("mode %s style %s: empty label", mode, style)
			}
			if strings.TrimSpace(cfg.SystemInstruction) == "" {
				return fmt.Errorf("mode %s style %s: empty system instruction", mode, style)
			}
		}
	}
	return nil
}

// Lookup returns the config registered for the pair.
func (c *Catalog) Lookup(mode models.Mode, style models.Style) (Config, error) {
	entry, ok := c.entries[mode]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown mode %q", ErrConfigNotFound, mode)
	}
	cfg, ok := entry.configs[style]
	if !ok {
		return Config{}, fmt.Errorf("%w: mode %s has no style %q", ErrConfigNotFound, mode, style)
	}
	return cfg, nil
}

// StylesFor returns the styles of a mode in presentation order, or nil for
// an unknown mode.
func (c *Catalog) StylesFor(mode models.Mode) []models.Style {
	entry, ok := c.entries[mode]
	if !ok {
		return nil
	}
	out := make([]models.Style, len(entry.styles))
	copy(out, entry.styles)
	return out
}

// Modes returns all modes in presentation order.
func (c *Catalog) Modes() []models.Mode {
	out := make([]models.Mode, len(c.modes))
	copy(out, c.modes)
	return out
}

// DefaultStyle is the first style of the mode.
func (c *Catalog) DefaultStyle(mode models.Mode) (models.Style, error) {
	entry, ok := c.entries[mode]
	if !ok {
		return "", fmt.Errorf("%w: unknown mode %q", ErrConfigNotFound, mode)
	}
	return entry.styles[0], nil
}

// Greeting is the assistant message shown when a mode is first opened.
func (c *Catalog) Greeting(mode models.Mode) string {
	if entry, ok := c.entries[mode]; ok {
		return entry.greeting
	}
	return ""
}

// ModeLabel returns the display label and description of a mode.
func (c *Catalog) ModeLabel(mode models.Mode) (string, string) {
	if entry, ok := c.entries[mode]; ok {
		return entry.label, entry.description
	}
	return "", ""
}
