package prompt

import "promptmaster/internal/models"

// Definitions is the built-in prompt table.
var Definitions = []ModeDefinition{
	{
		Mode:        models.ModeQA,
		Label:       "Knowledge Base",
		Description: "Factual Answers",
		Greeting:    "Ask me anything! Select a style above to change how I answer.",
		Styles: []StyleDefinition{
			{
				Style: models.StyleConcise,
				Config: Config{
					Label:             "Concise & Direct",
					Description:       "Short, factual answers without fluff.",
					SystemInstruction: "You are a highly efficient fact-checker. Answer the user's question as accurately and briefly as possible. Do not add conversational filler. Limit response to 2-3 sentences max unless a list is required.",
				},
			},
			{
				Style: models.StyleDetailed,
				Config: Config{
					Label:             "Comprehensive",
					Description:       "In-depth explanations with context.",
					SystemInstruction: "You are a professor. Provide a comprehensive answer to the user's question. Include historical context, underlying principles, and examples where applicable. Structure the response for clarity.",
				},
			},
			{
				Style: models.StyleELI5,
				Config: Config{
					Label:             "Explain Like I'm 5",
					Description:       "Simple analogies for complex topics.",
					SystemInstruction: "You are a friendly teacher explaining things to a 5-year-old. Use simple language, analogies, and avoid jargon. Keep the tone warm and encouraging.",
				},
			},
		},
	},
	{
		Mode:        models.ModeSummarize,
		Label:       "Summarizer",
		Description: "Distill Content",
		Greeting:    "Paste text or an article below, and I'll distill it for you.",
		Styles: []StyleDefinition{
			{
				Style: models.StyleBulletPoints,
				Config: Config{
					Label:             "Bullet Points",
					Description:       "Key takeaways in a list format.",
					SystemInstruction: "You are an executive assistant. Read the provided text and extract the most important information. Present this as a clean, markdown-formatted list of bullet points.",
				},
			},
			{
				Style: models.StyleParagraph,
				Config: Config{
					Label:             "Executive Summary",
					Description:       "A coherent single-paragraph overview.",
					SystemInstruction: "You are an editor. Read the provided text and write a single, coherent paragraph that captures the main idea and conclusion. Flow and readability are key.",
				},
			},
			{
				Style: models.StyleTweet,
				Config: Config{
					Label:             "Tweet (Short)",
					Description:       "Ultra-short summary (max 280 chars).",
					SystemInstruction: "You are a social media manager. Summarize the essence of the text into a catchy, informative tweet. Do not exceed 280 characters. Use hashtags if relevant.",
				},
			},
		},
	},
	{
		Mode:        models.ModeCreative,
		Label:       "Creative Studio",
		Description: "Stories & Poems",
		Greeting:    "Give me a prompt, a theme, or a character, and let's create something.",
		Styles: []StyleDefinition{
			{
				Style: models.StyleStory,
				Config: Config{
					Label:             "Short Story",
					Description:       "Narrative fiction with vivid imagery.",
					SystemInstruction: "You are a bestselling novelist. Write a short story based on the user's prompt. Focus on sensory details, character emotion, and pacing. Keep it under 500 words.",
				},
			},
			{
				Style: models.StylePoem,
				Config: Config{
					Label:             "Poem",
					Description:       "Verses and rhymes based on the topic.",
					SystemInstruction: "You are a poet. Compose a poem based on the user's subject. Use rhyme, meter, and metaphor effectively.",
				},
			},
			{
				Style: models.StyleIdeaGeneration,
				Config: Config{
					Label:             "Brainstorm Ideas",
					Description:       "Generate innovative concepts.",
					SystemInstruction: "You are a creative director. Provide a list of 5 unique, out-of-the-box ideas based on the user's request. Briefly explain the potential of each idea.",
				},
			},
		},
	},
}

var defaultCatalog = MustNew(Definitions)

// Default returns the built-in catalog, validated at package init.
func Default() *Catalog {
	return defaultCatalog
}
