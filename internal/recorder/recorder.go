package recorder

import (
	"errors"

	"AllowanceLogger/internal/model"
)

// Recorder persists allowance changes and monthly exports.
type Recorder interface {
	RecordChange(evt *model.ChangeEvent) error
	RecordExport(evt *model.ExportEvent) error
	Close() error
}

// MultiRecorder fans every event out to several recorders. All of them are
// called even if one fails; the errors are joined.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordChange(evt *model.ChangeEvent) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordChange(evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) RecordExport(evt *model.ExportEvent) error {
	var errs []error
	for _, r := range m {
		if err := r.RecordExport(evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiRecorder) Close() error {
	var errs []error
	for _, r := range m {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
