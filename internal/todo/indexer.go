// Package todo manages the ordered task lists inside todo-type board
// items. Tasks are addressed by position, not by stable identity: removing
// task 0 shifts every later index. This is the documented contract of the
// addressing scheme, accepted by its clients, not a bug.
package todo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medforce/boardstate/internal/store"
	"github.com/medforce/boardstate/pkg/board"
)

// Indexer resolves index-addressed task updates against the board store.
type Indexer struct {
	store *store.Store
}

// NewIndexer creates an Indexer over the store.
func NewIndexer(s *store.Store) *Indexer {
	return &Indexer{store: s}
}

// UpdateStatus sets the status of the task at the given position inside a
// todo item. Validates the index against the current list and mutates only
// that task's status; the list is never reordered or renumbered. Returns
// board.ErrIndexOutOfRange for an index outside [0, len(tasks)) with the
// task list untouched.
func (ix *Indexer) UpdateStatus(ctx context.Context, patientID, itemID string, index int, status board.TaskStatus) (*board.BoardItem, error) {
	if err := status.Validate(); err != nil {
		return nil, err
	}

	item, err := ix.store.Get(ctx, patientID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Type != board.ItemTypeTodo {
		return nil, fmt.Errorf("item %s is %s, not a todo", itemID, item.Type)
	}

	if index < 0 || index >= len(item.Tasks) {
		return nil, fmt.Errorf("index %d with %d tasks: %w", index, len(item.Tasks), board.ErrIndexOutOfRange)
	}

	tasks := make([]board.TodoTask, len(item.Tasks))
	copy(tasks, item.Tasks)
	tasks[index].Status = status

	// Persisting through the store keeps the item-updated event firing
	// for every task transition.
	return ix.store.Update(ctx, patientID, itemID, map[string]any{"tasks": tasks})
}

// AddTasks appends tasks to a todo item's list. Appending never shifts an
// existing index.
func (ix *Indexer) AddTasks(ctx context.Context, patientID, itemID string, tasks []board.TodoTask) (*board.BoardItem, error) {
	item, err := ix.store.Get(ctx, patientID, itemID)
	if err != nil {
		return nil, err
	}
	if item.Type != board.ItemTypeTodo {
		return nil, fmt.Errorf("item %s is %s, not a todo", itemID, item.Type)
	}

	merged := make([]board.TodoTask, 0, len(item.Tasks)+len(tasks))
	merged = append(merged, item.Tasks...)
	for _, t := range tasks {
		if t.Key == "" {
			t.Key = uuid.NewString()
		}
		if t.Status == "" {
			t.Status = board.TaskStatusTodo
		}
		if err := t.Status.Validate(); err != nil {
			return nil, err
		}
		merged = append(merged, t)
	}

	return ix.store.Update(ctx, patientID, itemID, map[string]any{"tasks": merged})
}
