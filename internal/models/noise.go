package models

// NoiseCalibration keeps the captured silence/talk levels of the last calibration pass.
type NoiseCalibration struct {
	Silence *float64 `json:"silence"`
	Talk    *float64 `json:"talk"`
}

// NoiseColors are the CSS colors used by the traffic light.
type NoiseColors struct {
	Green string `json:"green"`
	Amber string `json:"amber"`
	Red   string `json:"red"`
}

// NoiseSettings is the persisted noise configuration document.
// Thresholds are display levels on the 0-100 scale.
type NoiseSettings struct {
	Version     int              `json:"version"`
	GreenMax    float64          `json:"greenMax"`
	RedMin      float64          `json:"redMin"`
	Calibration NoiseCalibration `json:"calibration"`
	Gain        float64          `json:"gain"`
	VisualScale float64          `json:"visualScale"`
	Colors      NoiseColors      `json:"colors"`
}

// WorkMode is the classroom activity selection.
type WorkMode string

const (
	WorkModeIndividual WorkMode = "individual"
	WorkModePairs      WorkMode = "parejas"
	WorkModeGroups     WorkMode = "grupos"
	WorkModeSilence    WorkMode = "silencio"
)

// Valid reports whether the mode is known.
func (m WorkMode) Valid() bool {
	switch m {
	case WorkModeIndividual, WorkModePairs, WorkModeGroups, WorkModeSilence:
		return true
	default:
		return false
	}
}

// WorkModeSettings is the persisted work mode document.
type WorkModeSettings struct {
	Mode WorkMode `json:"mode"`
}
