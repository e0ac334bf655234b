package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage is the minimal envelope read from clients
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage pushes a progress tick to task subscribers
type WSProgressMessage struct {
	Type     string     `json:"type"`
	TaskID   string     `json:"task_id"`
	Status   TaskStatus `json:"status"`
	Progress float64    `json:"progress"`
	Stage    string     `json:"stage,omitempty"`
}

// WSCompleteMessage pushes the final result to task subscribers
type WSCompleteMessage struct {
	Type   string          `json:"type"`
	TaskID string          `json:"task_id"`
	Result *DownloadResult `json:"result"`
}

// WSErrorMessage pushes a failure to task subscribers
type WSErrorMessage struct {
	Type   string    `json:"type"`
	TaskID string    `json:"task_id"`
	Error  TaskError `json:"error"`
}
