package dto

import "github.com/edunotas/edunotas-api/internal/models"

// ClassSummary is one entry of the class selector.
type ClassSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	StudentCount int    `json:"studentCount"`
	ActiveCount  int    `json:"activeCount"`
}

// StudentView is a student with its derived remaining time.
type StudentView struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Count         int                `json:"count"`
	PositiveCount int                `json:"positiveCount"`
	SpentMs       int64              `json:"spentMs"`
	RemainingMs   int64              `json:"remainingMs"`
	Events        []models.MarkEvent `json:"events"`
}

// ClassView is the filtered roster of a class.
type ClassView struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	MinCount    int           `json:"minCount"`
	MinPositive int           `json:"minPositive"`
	Total       int           `json:"total"`
	Students    []StudentView `json:"students"`
	Clock       ClockView     `json:"clock"`
}

// ClockView exposes the global decay clock.
type ClockView struct {
	Running bool  `json:"running"`
	NowMs   int64 `json:"nowMs"`
}

// ClassFilterOverride replaces the stored filters for a single read.
type ClassFilterOverride struct {
	MinCount    *int
	MinPositive *int
}

// RenameRequest renames a class or a student.
type RenameRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// StudentRequest adds a student.
type StudentRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// FilterRequest stores the per-class list filters.
type FilterRequest struct {
	MinCount    int `json:"minCount" validate:"min=0"`
	MinPositive int `json:"minPositive" validate:"min=0"`
}

// ImportTextRequest imports pasted roster text.
type ImportTextRequest struct {
	Text string `json:"text" validate:"required"`
}

// ImportResponse reports the outcome of a roster import.
type ImportResponse struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
	Total   int `json:"total"`
}

// DecaySettingsRequest updates the minutes per mark.
type DecaySettingsRequest struct {
	NegMinutesPerPoint int `json:"negMinutesPerPoint" validate:"min=0,max=1440"`
	PosMinutesPerPoint int `json:"posMinutesPerPoint" validate:"min=0,max=1440"`
}

// WorkModeRequest selects the classroom activity mode.
type WorkModeRequest struct {
	Mode models.WorkMode `json:"mode" validate:"required,oneof=individual parejas grupos silencio"`
}
