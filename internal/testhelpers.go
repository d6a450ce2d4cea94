package internal

import (
	"fmt"
	"time"
)

// CreateTestSession creates a test session with one system prompt and one
// exchange
func CreateTestSession(id string) *Session {
	return CreateTestSessionWithMessages(id, []Message{
		{Role: RoleSystem, Content: "You are Nox."},
		{Role: RoleUser, Content: "Hello, how are you?"},
		{Role: RoleAssistant, Content: "I'm doing well, thank you!"},
	})
}

// CreateTestSessionWithMessages creates a test session with custom messages
func CreateTestSessionWithMessages(id string, messages []Message) *Session {
	title := ComputeTitle(messages)
	return &Session{
		ID:          id,
		Path:        "/tmp/" + id + logExt,
		Title:       title,
		DisplayName: DisplayName(id),
		Messages:    messages,
		Meta: SessionMeta{
			ID:    id,
			Turns: len(messages) / 2,
			Title: stringPtr(title),
		},
	}
}

// CreateTestRecord creates a logged turn with the standard system prompt
func CreateTestRecord(turn int, user, assistant string) Record {
	return Record{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are Nox."},
			{Role: RoleUser, Content: user},
			{Role: RoleAssistant, Content: assistant},
		},
		Meta: RecordMeta{
			Model:     "nox-test",
			Turn:      turn,
			Timestamp: formatTimestamp(time.Date(2025, 1, 1, 0, 0, turn, 0, time.UTC)),
		},
	}
}

// CreateTestRecords creates n numbered turns
func CreateTestRecords(n int) []Record {
	records := make([]Record, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, CreateTestRecord(i, fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i)))
	}
	return records
}
