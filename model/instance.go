package model

import "time"

// WorkflowInstance is a running occurrence of an entity type. EntityType is
// immutable after creation; CurrentStep is recomputed from step guards and
// never set directly by callers; Properties are mutable only through trigger
// execution.
type WorkflowInstance struct {
	ID          string                   `json:"id"`
	EntityType  string                   `json:"entity_type"`
	Variant     string                   `json:"variant,omitempty"`
	CurrentStep string                   `json:"current_step,omitempty"`
	Properties  Properties               `json:"properties,omitempty"`
	Events      map[string]InstanceEvent `json:"events,omitempty"`
	ParentID    string                   `json:"parent_id,omitempty"`
	Version     int                      `json:"version"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// InstanceEvent is a named timestamped marker on an instance.
type InstanceEvent struct {
	ID   string     `json:"id"`
	Date *time.Time `json:"date,omitempty"`
}

// Clone returns a working copy safe to mutate without touching the original.
// Trigger runs mutate a clone; only on full success does the clone reach the
// store.
func (w WorkflowInstance) Clone() WorkflowInstance {
	out := w
	out.Properties = w.Properties.Clone()
	out.Events = make(map[string]InstanceEvent, len(w.Events))
	for k, v := range w.Events {
		out.Events[k] = v
	}
	return out
}

// HasEvent reports whether the named event marker is present.
func (w *WorkflowInstance) HasEvent(name string) bool {
	_, ok := w.Events[name]
	return ok
}

// StepVersion is an immutable snapshot of data submitted to a step.
// SequenceNumber is strictly increasing per (InstanceID, StepName), starting
// at 1, with no gaps and no reuse.
type StepVersion struct {
	InstanceID     string     `json:"instance_id"`
	StepName       string     `json:"step_name"`
	SequenceNumber int        `json:"sequence_number"`
	SubmittedData  Properties `json:"submitted_data,omitempty"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	SubmittedBy    string     `json:"submitted_by"`
}

// OutboundMessage is the payload handed to the Messenger collaborator by a
// send_message trigger.
type OutboundMessage struct {
	Template   string     `json:"template"`
	Subject    string     `json:"subject,omitempty"`
	Body       string     `json:"body,omitempty"`
	To         string     `json:"to,omitempty"`
	InstanceID string     `json:"instance_id"`
	Payload    Properties `json:"payload,omitempty"`
}
