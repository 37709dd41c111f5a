package stream

// Type discriminates StreamEvent records on the wire
type Type string

const (
	TypeStatus      Type = "status"
	TypeThinking    Type = "thinking"
	TypeAnswer      Type = "answer"
	TypeAnswerChunk Type = "answer_chunk"
	TypeFigure      Type = "figure"
	TypeDownload    Type = "download"
	TypeComplete    Type = "complete"
	TypeProgress    Type = "progress"
	TypeError       Type = "error"
)

// IsTerminal reports whether the type ends a call's event sequence
func (t Type) IsTerminal() bool {
	return t == TypeComplete || t == TypeError
}

// Event is one unit of ordered output of a query or generation call
type Event struct {
	Type        Type        `json:"type"`
	Content     string      `json:"content,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	DownloadURL string      `json:"download_url,omitempty"`
	FilePath    string      `json:"file_path,omitempty"`
}

// FigureData is carried by figure events
type FigureData struct {
	Label      string  `json:"label"`
	Figure     int     `json:"figure"`
	Subfigure  string  `json:"subfigure,omitempty"`
	ImagePath  string  `json:"image_path"`
	ImageURL   string  `json:"image_url,omitempty"`
	Caption    string  `json:"caption,omitempty"`
	Page       int     `json:"page,omitempty"`
	Method     string  `json:"method,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ProgressData is carried by progress events
type ProgressData struct {
	Stage   string `json:"stage"`
	Step    int    `json:"step"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
}

// DownloadData describes a generated artifact
type DownloadData struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Format string `json:"format"`
	Token  string `json:"token,omitempty"`
	Size   int64  `json:"size,omitempty"`
}

// CompleteData is carried by the complete event
type CompleteData struct {
	Intent   string        `json:"intent"`
	Download *DownloadData `json:"download,omitempty"`
}
