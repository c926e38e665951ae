package catalog

import (
	"time"

	"rpc-gateway/internal/config"
)

type ListResponse struct {
	Data    []Procedure `json:"data"`
	FirstID string      `json:"first_id,omitempty"`
	LastID  string      `json:"last_id,omitempty"`
	Total   int         `json:"total"`
}

type Procedure struct {
	Path     string `json:"path"`
	Type     string `json:"type"`
	Kind     string `json:"kind"`
	LoadedAt string `json:"loaded_at"`
}

// BuildListResponse lists the configured procedures sorted by path.
func BuildListResponse(cfg *config.Config, loadedAt time.Time) ListResponse {
	paths := cfg.ProcedurePaths()
	items := make([]Procedure, 0, len(paths))
	loaded := loadedAt.UTC().Format(time.RFC3339)
	for _, path := range paths {
		proc, _ := cfg.ProcedureByPath(path)
		items = append(items, Procedure{
			Path:     proc.Path,
			Type:     proc.Type,
			Kind:     proc.Kind,
			LoadedAt: loaded,
		})
	}

	resp := ListResponse{
		Data:  items,
		Total: len(items),
	}
	if len(items) > 0 {
		resp.FirstID = items[0].Path
		resp.LastID = items[len(items)-1].Path
	}
	return resp
}
