package prompt

import (
	"fmt"
	"strings"

	"promptmaster/internal/models"
)

var modeAliases = map[string]models.Mode{
	"Q_AND_A":    models.ModeQA,
	"QA":         models.ModeQA,
	"SUMMARIZER": models.ModeSummarize,
	"SUMMARIZE":  models.ModeSummarize,
	"CREATIVE":   models.ModeCreative,
}

var knownStyles = []models.Style{
	models.StyleConcise,
	models.StyleDetailed,
	models.StyleELI5,
	models.StyleBulletPoints,
	models.StyleParagraph,
	models.StyleTweet,
	models.StyleStory,
	models.StylePoem,
	models.StyleIdeaGeneration,
}

// ParseMode accepts the wire names and their short aliases, case-insensitively.
func ParseMode(raw string) (models.Mode, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if mode, ok := modeAliases[key]; ok {
		return mode, nil
	}
	return "", fmt.Errorf("unknown mode %q", raw)
}

// ParseStyle accepts any known style name, case-insensitively. Whether the
// style belongs to a given mode is decided by the catalog.
func ParseStyle(raw string) (models.Style, error) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	for _, s := range knownStyles {
		if string(s) == key {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown style %q", raw)
}
