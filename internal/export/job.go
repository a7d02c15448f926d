package export

import (
	"encoding/json"
	"time"
)

// Job asks for a user's full ledger to be rendered and sent to a chat.
type Job struct {
	UserID      int64     `json:"user_id"`
	ChatID      int64     `json:"chat_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewJob stamps a job with the current time.
func NewJob(userID, chatID int64) Job {
	return Job{UserID: userID, ChatID: chatID, RequestedAt: time.Now().UTC()}
}

// ToJSON converts the job to JSON bytes
func (j Job) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// JobFromJSON decodes a job published by ToJSON.
func JobFromJSON(data []byte) (Job, error) {
	var j Job
	err := json.Unmarshal(data, &j)
	return j, err
}
