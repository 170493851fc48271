package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workerbee/internal/shared/apperr"
	"workerbee/internal/shared/model"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestReconcileStatus(t *testing.T) {
	completed := model.StatusCompleted
	pending := model.StatusPending

	tests := []struct {
		name     string
		patch    Patch
		strict   bool
		expected *model.TaskStatus
		wantErr  bool
	}{
		{"neither field", Patch{}, false, nil, false},
		{"status only", Patch{Status: strPtr("completed")}, false, &completed, false},
		{"completed only true", Patch{Completed: boolPtr(true)}, false, &completed, false},
		{"completed only false", Patch{Completed: boolPtr(false)}, false, &pending, false},
		{"both consistent", Patch{Status: strPtr("completed"), Completed: boolPtr(true)}, false, &completed, false},
		{"conflict: status wins", Patch{Status: strPtr("pending"), Completed: boolPtr(true)}, false, &pending, false},
		{"conflict strict: rejected", Patch{Status: strPtr("pending"), Completed: boolPtr(true)}, true, nil, true},
		{"invalid status", Patch{Status: strPtr("in_progress")}, false, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReconcileStatus(&tt.patch, tt.strict)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestApplyStatusChange(t *testing.T) {
	now := time.Date(2026, 8, 27, 15, 0, 0, 0, time.UTC)

	t.Run("pending to completed stamps archive fields", func(t *testing.T) {
		task := &model.Task{Status: model.StatusPending}
		ApplyStatusChange(task, model.StatusCompleted, "usr-1", now)

		assert.Equal(t, model.StatusCompleted, task.Status)
		require.NotNil(t, task.CompletedAt)
		assert.Equal(t, now, *task.CompletedAt)
		require.NotNil(t, task.CompletedBy)
		assert.Equal(t, "usr-1", *task.CompletedBy)
	})

	t.Run("completed to pending clears archive fields", func(t *testing.T) {
		by := "usr-1"
		task := &model.Task{Status: model.StatusCompleted, CompletedAt: &now, CompletedBy: &by}
		ApplyStatusChange(task, model.StatusPending, "usr-2", now)

		assert.Equal(t, model.StatusPending, task.Status)
		assert.Nil(t, task.CompletedAt)
		assert.Nil(t, task.CompletedBy)
	})

	t.Run("same status is a no-op", func(t *testing.T) {
		stamped := now.Add(-time.Hour)
		by := "usr-1"
		task := &model.Task{Status: model.StatusCompleted, CompletedAt: &stamped, CompletedBy: &by}
		ApplyStatusChange(task, model.StatusCompleted, "usr-2", now)

		// 重复提交 completed 不覆盖最初的归档打点
		assert.Equal(t, stamped, *task.CompletedAt)
		assert.Equal(t, "usr-1", *task.CompletedBy)
	})
}

// TestStatusInvariant 每次成功写入后 completed == (status == "completed")
func TestStatusInvariant(t *testing.T) {
	task := &model.Task{Status: model.StatusPending}
	now := time.Now().UTC()

	for _, status := range []model.TaskStatus{
		model.StatusCompleted, model.StatusPending, model.StatusCompleted,
	} {
		ApplyStatusChange(task, status, "usr-1", now)
		assert.Equal(t, task.Status == model.StatusCompleted, task.Completed())
	}
}
