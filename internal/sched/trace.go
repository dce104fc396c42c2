package sched

import (
	"encoding/csv"
	"os"
)

// EnableCSVTrace opens the given file path for CSV tracing of events.
// Rows are written only while DebugMode is on.
func (s *Scheduler) EnableCSVTrace(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	w.Write(traceHeader)
	w.Flush()

	s.traceMu.Lock()
	s.csvFile = f
	s.csvWriter = w
	s.traceMu.Unlock()
	return nil
}

func (s *Scheduler) closeTrace() {
	s.traceMu.Lock()
	defer s.traceMu.Unlock()
	if s.csvFile != nil {
		s.csvWriter.Flush()
		s.csvFile.Close()
		s.csvFile, s.csvWriter = nil, nil
	}
}

// emit records ev when debug mode is on. Caller holds s.mu.
func (s *Scheduler) emit(ev StatusEvent) {
	if !s.cfg.DebugMode {
		return
	}
	s.logger.Debug("scheduler event", ev.zapFields(s.cycles)...)

	s.traceMu.Lock()
	defer s.traceMu.Unlock()
	if s.csvWriter == nil {
		return
	}
	s.csvWriter.Write(ev.csvRecord(s.cycles))
	s.csvWriter.Flush()
}
