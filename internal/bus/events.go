package bus

// Event types published over a job's topic during processing. A job emits
// any number of progress events, at most one blueprint_ready event, and
// exactly one terminal completed or failed event.
const (
	EventProgress  = "progress"
	EventBlueprint = "blueprint_ready"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// ProgressEvent reports a stage transition.
func ProgressEvent(stage string) Event {
	return Event{Type: EventProgress, Payload: map[string]any{"stage": stage}}
}

// BlueprintEvent carries the assembled translation blueprint.
func BlueprintEvent(blueprint any) Event {
	return Event{Type: EventBlueprint, Payload: blueprint}
}

// CompletedEvent is the final event for a successful job.
func CompletedEvent(result string) Event {
	return Event{Type: EventCompleted, Payload: map[string]any{"result": result}}
}

// FailedEvent is the final event for a job whose attempts are exhausted.
func FailedEvent(message string) Event {
	return Event{Type: EventFailed, Payload: map[string]any{"error": message}}
}
