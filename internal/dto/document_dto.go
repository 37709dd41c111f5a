package dto

type UploadDocumentResponse struct {
	SessionId  string      `json:"session_id"`
	DocumentId string      `json:"document_id"`
	Name       string      `json:"name"`
	Pages      int         `json:"pages"`
	Figures    []FigureDTO `json:"figures"`
	AutoSplit  bool        `json:"auto_split"`
}

type FigureDTO struct {
	Label      string         `json:"label"`
	Number     int            `json:"number"`
	Caption    string         `json:"caption"`
	Page       int            `json:"page"`
	ImageURL   string         `json:"image_url"`
	Segmented  bool           `json:"segmented"`
	Subfigures []SubfigureDTO `json:"subfigures,omitempty"`
}

type SubfigureDTO struct {
	Label      string  `json:"label"`
	FullLabel  string  `json:"full_label"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	ImageURL   string  `json:"image_url"`
}

type FigureImageRequest struct {
	Figure    int    `query:"figure" validate:"required,min=1"`
	Subfigure string `query:"subfigure" validate:"omitempty,len=1,alpha,lowercase"`
}

type SegmentFiguresRequest struct {
	Figures []int `json:"figures" validate:"max=50,dive,min=1"`
}

type SegmentFiguresResponse struct {
	Segmented int `json:"segmented"`
}
