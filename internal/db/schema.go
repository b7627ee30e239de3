package db

import _ "embed"

//go:embed schema.sql
var Schema string

// Run statuses.
const (
	RunRunning   = "running"
	RunFinished  = "finished"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)
