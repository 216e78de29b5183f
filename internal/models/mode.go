package models

// Mode is the top-level conversational purpose of a chat turn.
type Mode string

const (
	ModeQA        Mode = "Q_AND_A"
	ModeSummarize Mode = "SUMMARIZER"
	ModeCreative  Mode = "CREATIVE"
)

// Style shapes the response within a mode. A style is only meaningful
// relative to the mode that owns it.
type Style string

const (
	// Q&A styles
	StyleConcise  Style = "CONCISE"
	StyleDetailed Style = "DETAILED"
	StyleELI5     Style = "ELI5"

	// Summary styles
	StyleBulletPoints Style = "BULLET_POINTS"
	StyleParagraph    Style = "PARAGRAPH"
	StyleTweet        Style = "TWEET"

	// Creative styles
	StyleStory          Style = "STORY"
	StylePoem           Style = "POEM"
	StyleIdeaGeneration Style = "IDEA_GENERATION"
)
