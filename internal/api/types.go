package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Progress counts chunks by state.
type Progress struct {
	Total      int `json:"total"`
	Done       int `json:"done"`
	Failed     int `json:"failed"`
	InProgress int `json:"inProgress"`
	Pending    int `json:"pending"`
	Percent    int `json:"percent"`
}

// ActiveSession describes the session currently transcribing.
type ActiveSession struct {
	ID            string   `json:"id"`
	Video         string   `json:"video"`
	SubtitlePath  string   `json:"subtitlePath"`
	Backend       string   `json:"backend"`
	Position      float64  `json:"position"`
	Progress      Progress `json:"progress"`
	Lines         int      `json:"lines"`
	Words         int      `json:"words"`
	Gaps          int      `json:"gaps"`
	Demotions     int      `json:"demotions"`
	Writes        int      `json:"writes"`
	LastPublished string   `json:"lastPublished,omitempty"`
	Outcome       string   `json:"outcome,omitempty"`
	ElapsedSecs   float64  `json:"elapsedSeconds"`
}

// SessionRecord is a journaled session.
type SessionRecord struct {
	ID           string  `json:"id"`
	VideoPath    string  `json:"videoPath"`
	SubtitlePath string  `json:"subtitlePath"`
	Backend      string  `json:"backend"`
	Duration     float64 `json:"duration"`
	StartedAt    string  `json:"startedAt,omitempty"`
	FinishedAt   string  `json:"finishedAt,omitempty"`
	Status       string  `json:"status"`
	ChunksTotal  int     `json:"chunksTotal"`
	ChunksDone   int     `json:"chunksDone"`
	ChunksFailed int     `json:"chunksFailed"`
	Lines        int     `json:"lines"`
	Error        string  `json:"error,omitempty"`
	ElapsedSecs  float64 `json:"elapsedSeconds"`
}

// AttemptRecord is one journaled transcription attempt.
type AttemptRecord struct {
	ChunkID     int     `json:"chunkId"`
	Attempt     int     `json:"attempt"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Outcome     string  `json:"outcome"`
	Error       string  `json:"error,omitempty"`
	Words       int     `json:"words"`
	ElapsedSecs float64 `json:"elapsedSeconds"`
	At          string  `json:"at,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Version     string `json:"version,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates service runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	LockFilePath string             `json:"lockFilePath"`
	JournalPath  string             `json:"journalPath,omitempty"`
	Backend      string             `json:"backend"`
	PlayerState  string             `json:"playerState"`
	Sessions     int                `json:"sessions"`
	UptimeSecs   float64            `json:"uptimeSeconds"`
	Session      *ActiveSession     `json:"session,omitempty"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// SessionListResponse wraps journaled sessions.
type SessionListResponse struct {
	Sessions []SessionRecord `json:"sessions"`
}

// SessionDetailResponse is one session with its attempts.
type SessionDetailResponse struct {
	Session  SessionRecord   `json:"session"`
	Attempts []AttemptRecord `json:"attempts"`
}
