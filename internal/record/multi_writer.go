package record

// MultiWriter fan-outs state and event rows to multiple writers.
type MultiWriter struct {
	statewriters []StateWriter
	eventwriters []EventWriter
}

// NewMultiWriter creates a new MultiWriter. Nil entries are skipped.
func NewMultiWriter(sws []StateWriter, ews []EventWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range sws {
		if w != nil {
			mw.statewriters = append(mw.statewriters, w)
		}
	}
	for _, w := range ews {
		if w != nil {
			mw.eventwriters = append(mw.eventwriters, w)
		}
	}
	return mw
}

// Write sends a state row to all writers.
func (mw *MultiWriter) Write(row StateRow) error {
	for _, w := range mw.statewriters {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends multiple state rows to all writers, using batch if supported.
func (mw *MultiWriter) WriteBatch(rows []StateRow) error {
	for _, w := range mw.statewriters {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteEvent sends a transition event to all event writers.
func (mw *MultiWriter) WriteEvent(e EventRow) error {
	for _, w := range mw.eventwriters {
		if err := w.WriteEvent(e); err != nil {
			return err
		}
	}
	return nil
}
