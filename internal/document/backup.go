package document

import (
	"time"

	"github.com/edunotas/edunotas-api/internal/models"
	appErrors "github.com/edunotas/edunotas-api/pkg/errors"
)

// AppName tags exported backups.
const AppName = "EduNotas"

// Backup is the export wrapper around the root document.
type Backup struct {
	App        string           `json:"app"`
	Version    int              `json:"version"`
	ExportedAt string           `json:"exportedAt"`
	AppKey     string           `json:"appKey"`
	State      *models.AppState `json:"state"`
}

// Export wraps a copy of the state for download.
func Export(state *models.AppState, appKey string, now time.Time) Backup {
	return Backup{
		App:        AppName,
		Version:    models.SchemaVersion,
		ExportedAt: now.UTC().Format(time.RFC3339),
		AppKey:     appKey,
		State:      state.Clone(),
	}
}

// ParseBackup accepts an export wrapper or a bare root document and returns
// the migrated state. Anything else is rejected.
func ParseBackup(raw []byte, now time.Time, d Defaults) (*models.AppState, error) {
	root, ok := decodeObject(raw)
	if !ok {
		return nil, appErrors.ErrInvalidBackup
	}

	body := raw
	if _, bare := root["classes"]; !bare {
		inner, ok := decodeObject(root["state"])
		if !ok {
			return nil, appErrors.ErrInvalidBackup
		}
		if _, has := inner["classes"]; !has {
			return nil, appErrors.ErrInvalidBackup
		}
		body = root["state"]
	}

	state, fresh := Migrate(body, now, d)
	if fresh {
		return nil, appErrors.ErrInvalidBackup
	}
	return state, nil
}
