package dto

import "time"

type QueryRequest struct {
	Question string `json:"question" validate:"required,max=4000"`
}

type GenerateRequest struct {
	Type           string `json:"type" validate:"required,oneof=report ppt"`
	Style          string `json:"style" validate:"max=40"`
	Language       string `json:"language" validate:"max=40"`
	IncludeFigures *bool  `json:"include_figures"`
	MaxFigures     int    `json:"max_figures" validate:"min=0,max=20"`
	OutputFormat   string `json:"output_format" validate:"omitempty,oneof=markdown md html marp"`
	Figures        []int  `json:"figures" validate:"max=10,dive,min=1"`
	Instruction    string `json:"instruction" validate:"max=1000"`
}

type TurnDTO struct {
	Id        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryQuery filters the history endpoint
type HistoryQuery struct {
	Role string `query:"role" validate:"omitempty,oneof=user assistant"`
}

type HistoryResponse struct {
	SessionId string    `json:"session_id"`
	Turns     []TurnDTO `json:"turns"`
	Archived  bool      `json:"archived"`
	Stored    int64     `json:"stored"` // turns kept in the archive
}

// PrewarmFiguresMessage is the payload of the segmentation prewarm topic
type PrewarmFiguresMessage struct {
	SessionId  string `json:"session_id"`
	DocumentId string `json:"document_id"`
	Figures    []int  `json:"figures,omitempty"`
}

// WsRequest is one client message on the query websocket
type WsRequest struct {
	Type     string           `json:"type" validate:"required,oneof=query generate"`
	Question string           `json:"question" validate:"max=4000"`
	Generate *GenerateRequest `json:"generate,omitempty"`
}
