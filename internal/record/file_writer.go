package record

import (
	"encoding/json"
	"os"
)

// FileWriter writes state and event rows to JSONL files.
type FileWriter struct {
	statePath string
	stateFile *os.File
	eventFile *os.File
	stateEnc  *json.Encoder
	eventEnc  *json.Encoder
}

// NewFileWriter creates a FileWriter. eventPath may be empty to skip the event log.
func NewFileWriter(statePath, eventPath string) (*FileWriter, error) {
	sf, err := os.Create(statePath)
	if err != nil {
		return nil, err
	}
	fw := &FileWriter{statePath: statePath, stateFile: sf, stateEnc: json.NewEncoder(sf)}
	if eventPath != "" {
		ef, err := os.Create(eventPath)
		if err != nil {
			sf.Close()
			return nil, err
		}
		fw.eventFile = ef
		fw.eventEnc = json.NewEncoder(ef)
	}
	return fw, nil
}

// StatePath returns the path of the state log.
func (f *FileWriter) StatePath() string { return f.statePath }

// Write logs a single state row.
func (f *FileWriter) Write(row StateRow) error {
	return f.stateEnc.Encode(row)
}

// WriteBatch logs multiple state rows.
func (f *FileWriter) WriteBatch(rows []StateRow) error {
	for _, r := range rows {
		if err := f.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteEvent logs a transition event, if enabled.
func (f *FileWriter) WriteEvent(e EventRow) error {
	if f.eventEnc == nil {
		return nil
	}
	return f.eventEnc.Encode(e)
}

// Close closes any underlying files. Later calls are no-ops.
func (f *FileWriter) Close() error {
	var err error
	if f.stateFile != nil {
		if e := f.stateFile.Close(); e != nil && err == nil {
			err = e
		}
		f.stateFile = nil
	}
	if f.eventFile != nil {
		if e := f.eventFile.Close(); e != nil && err == nil {
			err = e
		}
		f.eventFile = nil
	}
	return err
}
