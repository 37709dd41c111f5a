package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	// DOCUMENT Q&A
	DocumentQASystemPrompt = `You are a research assistant helping the user read a scientific paper.

RULES:
1. Answer using the provided excerpts first. Say so when the excerpts do not cover the question.
2. Quote numbers, dataset names and method names exactly as written.
3. Mention the page when you rely on a specific excerpt, e.g. "(p. 4)".
4. Answer in the language of the question.
5. Be concise: 2-6 sentences unless the user asks for detail.`

	DocumentQAUserPrompt = `### PAPER: %s

### EXCERPTS
%s

### QUESTION
%s`

	// CHIT-CHAT (no document loaded)
	ChitChatSystemPrompt = `You are a friendly literature assistant. No paper is loaded yet.
Chat naturally and answer general questions. When the user asks about a paper, figures or
generating slides or reports, tell them to upload a PDF first. Answer in the language of the user.`

	// FIGURE ANALYSIS
	FigureAnalysisSystemPrompt = `You are an expert at reading scientific figures.
Describe what each attached image shows: plot type, axes, legends, trends, and what the panel
contributes to the paper's argument. Refer to images by the labels given. Do not invent values
that cannot be read from the image. Answer in the language of the question.`

	FigureAnalysisUserPrompt = `### QUESTION
%s

### FIGURES (attached in this order)
%s`

	// Used when the vision model is unavailable or timed out
	FigureCaptionOnlyPrompt = `The figure images could not be analysed. Answer the question from the captions
and text snippets below only, and state that the answer is based on the text, not the image.

### QUESTION
%s

### FIGURES
%s`

	// GENERATION: OUTLINE
	OutlinePrompt = `Plan a %s about the paper below.
Style: %s. Language: %s. %s

Return JSON only, no prose:
{"title": "...", "subtitle": "...", "sections": ["...", "..."]}

Use %d to %d sections. Section names must be short headings.
When a conversation is given, build the sections around what it discussed.
%s
### PAPER
%s`

	// GENERATION: SECTION / SLIDE DRAFTING
	SectionDraftPrompt = `Write the "%s" part of a %s about the paper below.
Style: %s. Language: %s. %s

Format: %s
Do not repeat the heading. Do not add a conclusion unless the part is the conclusion.
%s
### PAPER
%s`

	SlideBodyFormat  = `3-5 short markdown bullet points, at most 15 words each.`
	ReportBodyFormat = `1-3 markdown paragraphs.`

	// Sampling
	QATemperature      = 0.3
	OutlineTemperature = 0.2 // JSON output
	DraftTemperature   = 0.5
	DraftMaxTokens     = 1200

	// Limits
	QAMaxExcerpts         = 4
	QAExcerptChars        = 1500
	GenerationSampleChars = 8000
	GenerationTurnChars   = 600
	FigureMentionLimit    = 3
)
