package api

import "github.com/dmdmdm-nz/reachd/internal/watchmgr"

// Targets is the part of the watch manager the API serves.
type Targets interface {
	Ready() bool
	Snapshot() []watchmgr.TargetState
	Get(name string) (watchmgr.TargetState, bool)
	Subscribe() (<-chan watchmgr.TargetState, func())
}

type VersionInfo struct {
	Version    string `json:"version"`
	CommitHash string `json:"commitHash"`
	BuildTime  string `json:"buildTime"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
