package workflows

import "errors"

var (
	// ErrWorkspaceRequired is returned when no workspace manager is provided
	ErrWorkspaceRequired = errors.New("workspace manager required")

	// ErrStageRequired is returned when a pipeline stage implementation is missing
	ErrStageRequired = errors.New("pipeline stage required")
)
