package importer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message levels mirror what the host surfaces to the operator.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Message is one user-visible outcome line for a run.
type Message struct {
	Level string `json:"level"`
	Kind  string `json:"kind,omitempty"`
	Text  string `json:"text"`
}

// Report accumulates per-record outcomes for one import run. A record's
// failure is recorded and the run continues; only format-level failures
// abort a run, and those never produce a Report.
type Report struct {
	RunID    string    `json:"run_id"`
	Started  time.Time `json:"started"`
	Imported int       `json:"imported"`
	Updated  int       `json:"updated"`
	Failed   int       `json:"failed"`
	Messages []Message `json:"messages"`
}

func NewReport() *Report {
	return &Report{RunID: uuid.New().String()}
}

func (r *Report) RecordImported(kind, title string) {
	r.Imported++
	r.Messages = append(r.Messages, Message{
		Level: LevelInfo, Kind: kind,
		Text: fmt.Sprintf("%s %q imported", kind, title),
	})
}

func (r *Report) RecordUpdated(kind, title string) {
	r.Updated++
	r.Messages = append(r.Messages, Message{
		Level: LevelInfo, Kind: kind,
		Text: fmt.Sprintf("%s %q updated", kind, title),
	})
}

func (r *Report) RecordFailed(kind, title string, err error) {
	r.Failed++
	r.Messages = append(r.Messages, Message{
		Level: LevelError, Kind: kind,
		Text: fmt.Sprintf("%s %q not imported: %v", kind, title, err),
	})
}
