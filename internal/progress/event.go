// Package progress implements the per-operation streaming job-progress
// context (C5): a single-producer bounded queue of structured events that
// couples a long-running deploy operation to the client watching it.
package progress

import "encoding/json"

// EventKind tags the shape of an Event, modeling the Python source's
// arbitrary ctx.custom(**kwargs) calls as an explicit sum type.
type EventKind string

const (
	KindJob      EventKind = "job"
	KindLog      EventKind = "log"
	KindError    EventKind = "error"
	KindCustom   EventKind = "custom"
	kindSentinel EventKind = "__done__"
)

// Event is one entry on the progress queue.
type Event struct {
	Kind EventKind

	// Text carries the message for Job, Log, and Error events.
	Text string

	// Custom carries arbitrary plugin-defined fields for Custom events,
	// e.g. {"data-request": svc, "tag": "git"}.
	Custom map[string]interface{}
}

// MarshalJSON renders the event the way the HTTP edge streams it: a bare
// {"job": "..."} / {"log": "..."} / {"error": "..."} object, or the custom
// field map verbatim for plugin-defined shapes.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case KindJob:
		return json.Marshal(map[string]string{"job": e.Text})
	case KindLog:
		return json.Marshal(map[string]string{"log": e.Text})
	case KindError:
		return json.Marshal(map[string]string{"error": e.Text})
	case KindCustom:
		return json.Marshal(e.Custom)
	default:
		return json.Marshal(map[string]string{})
	}
}

// RenderPlaintext implements the human-readable wire variant from the
// external interfaces spec: job as "-----> <label>", log as indented text,
// error as an indented "Error: <msg>" line.
func (e Event) RenderPlaintext() string {
	switch e.Kind {
	case KindJob:
		return "-----> " + e.Text + "\n"
	case KindLog:
		return "       " + e.Text + "\n"
	case KindError:
		return "       Error: " + e.Text + "\n"
	default:
		return ""
	}
}

// IsError reports whether this event is an error event, used by the CLI
// exit-code convention (non-zero on any observed error event).
func (e Event) IsError() bool { return e.Kind == KindError }
