// Package model 核心数据模型测试
package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUser_SensitiveFieldsNeverSerialized 验证敏感字段不出现在 JSON 中
func TestUser_SensitiveFieldsNeverSerialized(t *testing.T) {
	lock := time.Now().Add(time.Hour)
	u := User{
		ID:            "usr-abc123",
		Username:      "alice",
		Email:         "alice@example.com",
		DisplayName:   "Alice",
		PasswordHash:  "$2a$12$secret",
		Active:        true,
		LoginAttempts: 3,
		LockUntil:     &lock,
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))

	assert.NotContains(t, m, "password_hash")
	assert.NotContains(t, m, "login_attempts")
	assert.NotContains(t, m, "lock_until")
	assert.Equal(t, "alice", m["username"])
	assert.Equal(t, "Alice", m["display_name"])
}

func TestUser_Locked(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name      string
		lockUntil *time.Time
		expected  bool
	}{
		{"no lock", nil, false},
		{"expired lock", &past, false},
		{"active lock", &future, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := User{LockUntil: tt.lockUntil}
			assert.Equal(t, tt.expected, u.Locked(now))
		})
	}
}

func TestValidUsername(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"simple", "alice", true},
		{"with underscore and hyphen", "team_lead-2", true},
		{"too short", "ab", false},
		{"too long", "a123456789012345678901234567890", false},
		{"illegal chars", "alice!", false},
		{"spaces", "alice smith", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidUsername(tt.input))
		})
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("bob@example.com"))
	assert.True(t, ValidEmail("bob.smith+tag@sub.example.co"))
	assert.False(t, ValidEmail("bob"))
	assert.False(t, ValidEmail("bob@"))
	assert.False(t, ValidEmail("@example.com"))
}

// TestTask_CompletedProjection 验证 completed 投影与 status 恒等
func TestTask_CompletedProjection(t *testing.T) {
	task := Task{Status: StatusPending}
	assert.False(t, task.Completed())

	task.Status = StatusCompleted
	assert.True(t, task.Completed())
}

func TestTask_Overdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		due      *time.Time
		status   TaskStatus
		expected bool
	}{
		{"no due date", nil, StatusPending, false},
		{"due in future", &future, StatusPending, false},
		{"past due pending", &past, StatusPending, true},
		{"past due but completed", &past, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{DueDate: tt.due, Status: tt.status}
			assert.Equal(t, tt.expected, task.Overdue(now))
		})
	}
}

func TestValidPriority(t *testing.T) {
	for _, p := range []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent} {
		assert.True(t, ValidPriority(p))
	}
	assert.False(t, ValidPriority("critical"))
	assert.False(t, ValidPriority(""))
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusPending))
	assert.True(t, ValidStatus(StatusCompleted))
	assert.False(t, ValidStatus("in_progress"))
	assert.False(t, ValidStatus(""))
}
