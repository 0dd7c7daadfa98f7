package releve

import "errors"

// ErrUnknownSource is returned when the configured source has no adapter.
var ErrUnknownSource = errors.New("releve: unknown source")

// ErrRunActive is returned when Run is called while a run is already going.
var ErrRunActive = errors.New("releve: run already active")

// ErrNoRun is returned by snapshot requests before any run has started.
var ErrNoRun = errors.New("releve: no run in progress")
