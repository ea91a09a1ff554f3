package board

import "fmt"

// BoardItem represents one clinical artifact surfaced on a patient's board.
// Every piece of board-visible information - reports, lab results, todos,
// notes, schedules - is represented as an item with provenance and
// timestamps.
type BoardItem struct {
	ID          string         `json:"id"`                  // Unique within the patient's board, assigned at creation
	PatientID   string         `json:"patientId"`           // Normalized (uppercased) patient identifier
	Type        ItemType       `json:"type"`                // Immutable after creation
	Title       string         `json:"title,omitempty"`     // Display title
	Zone        string         `json:"zone,omitempty"`      // Target layout zone hint, may be empty
	Content     map[string]any `json:"content,omitempty"`   // Type-specific payload, opaque to the cache layer
	Tasks       []TodoTask     `json:"tasks,omitempty"`     // Populated for todo-type items only
	CreatedAtMs int64          `json:"createdAtMs"`         // Unix milliseconds
	UpdatedAtMs int64          `json:"updatedAtMs"`         // Refreshed on every mutation
}

// ItemType is the closed set of board item kinds.
type ItemType string

const (
	ItemTypeReport          ItemType = "report"
	ItemTypeDiagnostic      ItemType = "diagnostic"
	ItemTypeLegalCompliance ItemType = "legal-compliance"
	ItemTypeLabResult       ItemType = "lab-result"
	ItemTypeTodo            ItemType = "todo"
	ItemTypeAgentResult     ItemType = "agent-result"
	ItemTypeDoctorNote      ItemType = "doctor-note"
	ItemTypeImage           ItemType = "image"
	ItemTypeComponent       ItemType = "component"
	ItemTypeSchedule        ItemType = "schedule"
)

// TodoTask is one line item inside a todo-type board item.
// Tasks are addressed by their position in the ordered list, not by Key.
// Key is a synthetic stable identity kept so a stable-id API can be added
// later without breaking positional addressing.
type TodoTask struct {
	Key    string     `json:"key,omitempty"`
	Text   string     `json:"text"`
	Status TaskStatus `json:"status"`
}

// TaskStatus is the lifecycle state of a todo task.
type TaskStatus string

const (
	TaskStatusTodo      TaskStatus = "todo"
	TaskStatusExecuting TaskStatus = "executing"
	TaskStatusFinished  TaskStatus = "finished"
)

// Origin records which source last populated a cache entry.
type Origin string

const (
	// OriginLiveWrite marks data written directly by a caller.
	OriginLiveWrite Origin = "live-write"

	// OriginExternalAPI marks data fetched from the external patient-data API.
	OriginExternalAPI Origin = "external-api"

	// OriginStaticFile marks data loaded from the static fallback file.
	OriginStaticFile Origin = "static-file"
)

// ZonePosition is the placement of an item within a named layout zone.
type ZonePosition struct {
	ItemID string  `json:"itemId"`
	ZoneID string  `json:"zoneId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Order  int     `json:"order"` // Stacking tie-break within the zone
}

// EventKind identifies the type of a board mutation event.
type EventKind string

const (
	EventItemCreated    EventKind = "item-created"
	EventItemUpdated    EventKind = "item-updated"
	EventItemDeleted    EventKind = "item-deleted"
	EventNotification   EventKind = "notification"
	EventFocusRequested EventKind = "focus-requested"
)

// Event is one board mutation delivered to subscribers of a patient's board.
// Delivery is best-effort to currently connected subscribers only; a
// reconnecting subscriber must re-fetch full state rather than expect
// backfilled events.
type Event struct {
	Kind      EventKind  `json:"kind"`
	PatientID string     `json:"patientId"`
	ItemID    string     `json:"itemId,omitempty"`
	Item      *BoardItem `json:"item,omitempty"`
	Message   string     `json:"message,omitempty"` // notification events
	Zoom      float64    `json:"zoom,omitempty"`    // focus-requested events
	AtMs      int64      `json:"atMs"`
}

// Validate checks if the BoardItem has valid field values.
func (i *BoardItem) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item ID cannot be empty")
	}

	if _, err := NormalizePatientID(i.PatientID); err != nil {
		return err
	}

	if err := i.Type.Validate(); err != nil {
		return err
	}

	if i.CreatedAtMs <= 0 {
		return fmt.Errorf("createdAtMs must be set")
	}

	for idx, task := range i.Tasks {
		if err := task.Status.Validate(); err != nil {
			return fmt.Errorf("invalid task at index %d: %w", idx, err)
		}
	}

	return nil
}

// Validate checks if the ItemType is a valid enum value.
func (t ItemType) Validate() error {
	switch t {
	case ItemTypeReport, ItemTypeDiagnostic, ItemTypeLegalCompliance,
		ItemTypeLabResult, ItemTypeTodo, ItemTypeAgentResult,
		ItemTypeDoctorNote, ItemTypeImage, ItemTypeComponent,
		ItemTypeSchedule:
		return nil
	default:
		return fmt.Errorf("unknown item type: %q", t)
	}
}

// Validate checks if the TaskStatus is a valid enum value.
func (s TaskStatus) Validate() error {
	switch s {
	case TaskStatusTodo, TaskStatusExecuting, TaskStatusFinished:
		return nil
	default:
		return fmt.Errorf("unknown task status: %q", s)
	}
}

// Validate checks if the Origin is a valid enum value.
func (o Origin) Validate() error {
	switch o {
	case OriginLiveWrite, OriginExternalAPI, OriginStaticFile:
		return nil
	default:
		return fmt.Errorf("unknown origin: %q", o)
	}
}

// Validate checks if the ZonePosition has valid field values.
func (p *ZonePosition) Validate() error {
	if p.ItemID == "" {
		return fmt.Errorf("position itemId cannot be empty")
	}
	if p.ZoneID == "" {
		return fmt.Errorf("position zoneId cannot be empty")
	}
	return nil
}

// Validate checks if the EventKind is a valid enum value.
func (k EventKind) Validate() error {
	switch k {
	case EventItemCreated, EventItemUpdated, EventItemDeleted,
		EventNotification, EventFocusRequested:
		return nil
	default:
		return fmt.Errorf("unknown event kind: %q", k)
	}
}
