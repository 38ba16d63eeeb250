package event

import "time"

// CompileInvalidData is the data for compile.invalid events.
type CompileInvalidData struct {
	BuildID string   `json:"buildID"`
	Files   []string `json:"files,omitempty"`
}

// CompileDoneData is the data for compile.done events.
type CompileDoneData struct {
	BuildID  string        `json:"buildID"`
	Duration time.Duration `json:"duration"`
	Warnings []string      `json:"warnings,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
	Rebuild  bool          `json:"rebuild"`
}

// HasErrors reports whether the compilation finished with errors.
func (d CompileDoneData) HasErrors() bool { return len(d.Errors) > 0 }

// CompileFailedData is the data for compile.failed events.
type CompileFailedData struct {
	BuildID string `json:"buildID"`
	Error   string `json:"error"`
}

// FileChangedData is the data for file.changed events.
type FileChangedData struct {
	File string `json:"file"`
	Op   string `json:"op"`
}

// ServerListeningData is the data for devserver.listening events.
type ServerListeningData struct {
	URL  string `json:"url"`
	Addr string `json:"addr"`
}
