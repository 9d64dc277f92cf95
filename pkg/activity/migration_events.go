package activity

import (
	"strings"
	"time"
)

// Verbs emitted by a migration run.
const (
	VerbRecordMigrated = "record.migrated"
	VerbRecordSkipped  = "record.skipped"
	VerbRecordFailed   = "record.failed"
	VerbPhaseFinished  = "phase.finished"
)

// Phases of a migration run, in execution order.
const (
	PhaseTopics  = "topics"
	PhaseLogs    = "logs"
	PhaseArchive = "archive"
)

// RecordEventInput describes the common fields for per-record events.
type RecordEventInput struct {
	RunID      string
	Phase      string
	Path       string
	Reason     string
	Err        error
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildRecordMigratedEvent constructs an event for a record written to the target.
func BuildRecordMigratedEvent(input RecordEventInput) Event {
	return buildRecordEvent(VerbRecordMigrated, input)
}

// BuildRecordSkippedEvent constructs an event for a record deliberately left out.
func BuildRecordSkippedEvent(input RecordEventInput) Event {
	return buildRecordEvent(VerbRecordSkipped, input)
}

// BuildRecordFailedEvent constructs an event for a record that could not be translated or written.
func BuildRecordFailedEvent(input RecordEventInput) Event {
	return buildRecordEvent(VerbRecordFailed, input)
}

// BuildPhaseFinishedEvent constructs an event closing a phase with its counters.
func BuildPhaseFinishedEvent(runID, phase string, migrated, skipped, failed int) Event {
	return Event{
		Verb:  VerbPhaseFinished,
		RunID: strings.TrimSpace(runID),
		Phase: phase,
		Metadata: map[string]any{
			"migrated": migrated,
			"skipped":  skipped,
			"failed":   failed,
		},
	}
}

func buildRecordEvent(verb string, input RecordEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		metadata = ensureMetadata(metadata)
		metadata["reason"] = reason
	}
	if input.Err != nil {
		metadata = ensureMetadata(metadata)
		metadata["error"] = input.Err.Error()
	}
	return Event{
		Verb:       verb,
		RunID:      strings.TrimSpace(input.RunID),
		Phase:      strings.TrimSpace(input.Phase),
		Path:       input.Path,
		Err:        input.Err,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
