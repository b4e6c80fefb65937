package services

import (
	"errors"
	"strings"
)

var (
	// ErrAI marks failures of upstream generative or embedding calls.
	ErrAI = errors.New("ai call error")
	// ErrInvalidBlueprint marks a blueprint response missing required fields.
	ErrInvalidBlueprint = errors.New("invalid blueprint")
	// ErrIndexing marks memory-index failures that must abort the job.
	ErrIndexing = errors.New("indexing error")
	// ErrValidation marks caller input that cannot be processed.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or unusable runtime configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures worth retrying without further classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error that carries component context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above. The wrapped cause stays in the chain
// for logs but is kept separate from the summary so UserMessage can drop it.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &serviceError{
		marker: marker,
		detail: buildDetail(component, operation, message),
		cause:  err,
	}
}

type serviceError struct {
	marker error
	detail string
	cause  error
}

func (e *serviceError) Error() string {
	if e.cause != nil {
		return e.summary() + ": " + e.cause.Error()
	}
	return e.summary()
}

func (e *serviceError) summary() string {
	return e.marker.Error() + ": " + e.detail
}

func (e *serviceError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

// UserMessage reduces an internal error to the summarized text safe to expose
// across the event bus boundary. For wrapped service errors only the marker
// and component detail survive; the cause (provider payloads included) never
// does. Other errors keep their first line, truncated.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	message := strings.TrimSpace(err.Error())
	var svcErr *serviceError
	if errors.As(err, &svcErr) {
		message = svcErr.summary()
	}
	if idx := strings.Index(message, "\n"); idx >= 0 {
		message = message[:idx]
	}
	const limit = 300
	if len(message) > limit {
		message = message[:limit] + "..."
	}
	return message
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
