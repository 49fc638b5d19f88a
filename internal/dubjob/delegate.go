package dubjob

import "encoding/json"

// DelegateMessage is the contract between the orchestrator and the analysis
// worker: one message per job on the delegate queue. JobID doubles as the
// correlation id and is also embedded in CallbackURL, so the completion
// webhook can be tied back to the job no matter which path carries it.
type DelegateMessage struct {
	JobID       string          `json:"job_id"`
	AudioKey    string          `json:"audio_key"`
	CallbackURL string          `json:"callback_url"`
	Words       []ReferenceWord `json:"words"`
}

// Marshal serializes the message for the queue.
func (m *DelegateMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalDelegateMessage parses a queue delivery body.
func UnmarshalDelegateMessage(data []byte) (*DelegateMessage, error) {
	var m DelegateMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
