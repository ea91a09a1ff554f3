package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItem() *BoardItem {
	now := time.Now().UnixMilli()
	return &BoardItem{
		ID:          "item-1",
		PatientID:   "PT-1",
		Type:        ItemTypeReport,
		Title:       "Discharge summary",
		CreatedAtMs: now,
		UpdatedAtMs: now,
	}
}

func TestBoardItemValidate(t *testing.T) {
	t.Run("accepts valid item", func(t *testing.T) {
		assert.NoError(t, validItem().Validate())
	})

	t.Run("rejects empty ID", func(t *testing.T) {
		item := validItem()
		item.ID = ""
		assert.Error(t, item.Validate())
	})

	t.Run("rejects empty patient", func(t *testing.T) {
		item := validItem()
		item.PatientID = ""
		assert.ErrorIs(t, item.Validate(), ErrInvalidPatient)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		item := validItem()
		item.Type = "spreadsheet"
		assert.Error(t, item.Validate())
	})

	t.Run("rejects missing creation timestamp", func(t *testing.T) {
		item := validItem()
		item.CreatedAtMs = 0
		assert.Error(t, item.Validate())
	})

	t.Run("rejects task with unknown status", func(t *testing.T) {
		item := validItem()
		item.Type = ItemTypeTodo
		item.Tasks = []TodoTask{
			{Text: "order labs", Status: TaskStatusTodo},
			{Text: "review results", Status: "paused"},
		}
		err := item.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "index 1")
	})
}

func TestEnumValidation(t *testing.T) {
	t.Run("item types", func(t *testing.T) {
		for _, it := range []ItemType{
			ItemTypeReport, ItemTypeDiagnostic, ItemTypeLegalCompliance,
			ItemTypeLabResult, ItemTypeTodo, ItemTypeAgentResult,
			ItemTypeDoctorNote, ItemTypeImage, ItemTypeComponent,
			ItemTypeSchedule,
		} {
			assert.NoError(t, it.Validate(), string(it))
		}
		assert.Error(t, ItemType("").Validate())
	})

	t.Run("task statuses", func(t *testing.T) {
		for _, s := range []TaskStatus{TaskStatusTodo, TaskStatusExecuting, TaskStatusFinished} {
			assert.NoError(t, s.Validate(), string(s))
		}
		assert.Error(t, TaskStatus("done").Validate())
	})

	t.Run("origins", func(t *testing.T) {
		for _, o := range []Origin{OriginLiveWrite, OriginExternalAPI, OriginStaticFile} {
			assert.NoError(t, o.Validate(), string(o))
		}
		assert.Error(t, Origin("cache").Validate())
	})

	t.Run("event kinds", func(t *testing.T) {
		for _, k := range []EventKind{
			EventItemCreated, EventItemUpdated, EventItemDeleted,
			EventNotification, EventFocusRequested,
		} {
			assert.NoError(t, k.Validate(), string(k))
		}
		assert.Error(t, EventKind("item-moved").Validate())
	})
}

func TestZonePositionValidate(t *testing.T) {
	pos := &ZonePosition{ItemID: "item-1", ZoneID: "patient-report-zone", X: 40, Y: 80}
	assert.NoError(t, pos.Validate())

	assert.Error(t, (&ZonePosition{ZoneID: "patient-report-zone"}).Validate())
	assert.Error(t, (&ZonePosition{ItemID: "item-1"}).Validate())
}
