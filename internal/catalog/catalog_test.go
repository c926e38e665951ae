package catalog_test

import (
	"testing"
	"time"

	"rpc-gateway/internal/catalog"
	"rpc-gateway/internal/config"
)

func TestBuildListResponseSortsByPath(t *testing.T) {
	cfg := &config.Config{
		Procedures: []config.Procedure{
			{Path: "users.list"},
			{Path: "echo", Type: config.TypeMutation, Kind: config.KindEcho},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	loaded := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	resp := catalog.BuildListResponse(cfg, loaded)

	if resp.Total != 2 || resp.FirstID != "echo" || resp.LastID != "users.list" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Data[0].Type != config.TypeMutation || resp.Data[0].Kind != config.KindEcho {
		t.Fatalf("echo = %+v", resp.Data[0])
	}
	if resp.Data[1].LoadedAt != "2026-01-02T03:04:05Z" {
		t.Fatalf("loaded_at = %q", resp.Data[1].LoadedAt)
	}
}
