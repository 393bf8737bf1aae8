package recorder

import "AllowanceLogger/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordChange(_ *model.ChangeEvent) error { return nil }
func (n *NoopRecorder) RecordExport(_ *model.ExportEvent) error { return nil }
func (n *NoopRecorder) Close() error                            { return nil }
