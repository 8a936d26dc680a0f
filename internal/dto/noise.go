package dto

import "github.com/edunotas/edunotas-api/internal/models"

// MicState describes the host microphone.
type MicState string

const (
	MicOff MicState = "off"
	MicOn  MicState = "on"
)

// NoiseStatus is the full noise panel state.
type NoiseStatus struct {
	Settings models.NoiseSettings `json:"settings"`
	Level    float64              `json:"level"`
	Zone     string               `json:"zone"`
	Mic      MicState             `json:"mic"`
	Message  string               `json:"message,omitempty"`
}

// ThresholdRequest moves one boundary; the other is pushed to keep the amber band.
type ThresholdRequest struct {
	Boundary string  `json:"boundary" validate:"required,oneof=green red"`
	Level    float64 `json:"level" validate:"gte=0,lte=100"`
}

// GainRequest sets the input gain multiplier.
type GainRequest struct {
	Gain float64 `json:"gain" validate:"gte=0.25,lte=4"`
}

// ColorsRequest sets the traffic light colors.
type ColorsRequest struct {
	Green string `json:"green" validate:"required,hexcolor"`
	Amber string `json:"amber" validate:"required,hexcolor"`
	Red   string `json:"red" validate:"required,hexcolor"`
}

// CalibrateRequest optionally overrides the sampled level.
type CalibrateRequest struct {
	Level *float64 `json:"level" validate:"omitempty,gte=0,lte=100"`
}

// SampleRequest feeds one RMS amplitude frame.
type SampleRequest struct {
	RMS float64 `json:"rms" validate:"gte=0,lte=1"`
}

// NoiseEvent is pushed to stream subscribers when the zone changes.
type NoiseEvent struct {
	Level float64 `json:"level"`
	DB    float64 `json:"db"`
	Zone  string  `json:"zone"`
	Color string  `json:"color"`
	AtMs  int64   `json:"atMs"`
}
