package logger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/job"
)

// Field keys shared across packages.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldRunID    = "run_id"
	FieldRecordID = "record_id"
	FieldTitle    = "title"
	FieldCompany  = "company"
	FieldSource   = "source"
)

type StringField struct {
	Key   string
	Value string
}

// StringFields builds zap string fields. Keys and values are trimmed and
// pairs with an empty side are skipped.
func StringFields(fields ...StringField) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		key, value := strings.TrimSpace(f.Key), strings.TrimSpace(f.Value)
		if key == "" || value == "" {
			continue
		}
		out = append(out, zap.String(key, value))
	}
	return out
}

// WithFields returns log with fields attached. A nil log becomes a no-op logger.
func WithFields(log *zap.Logger, fields ...zap.Field) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	if len(fields) == 0 {
		return log
	}
	return log.With(fields...)
}

// CommonFields describe the model behind an entry.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithCommonFields(log *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(log, CommonFields(provider, model)...)
}

// RecordFields describe a record in log entries.
func RecordFields(rec *job.Record) []zap.Field {
	if rec == nil {
		return nil
	}
	return StringFields(
		StringField{Key: FieldRecordID, Value: rec.ID},
		StringField{Key: FieldTitle, Value: rec.Title},
		StringField{Key: FieldCompany, Value: rec.Company},
		StringField{Key: FieldSource, Value: rec.Source},
	)
}

// WithRecord returns log scoped to rec.
func WithRecord(log *zap.Logger, rec *job.Record) *zap.Logger {
	return WithFields(log, RecordFields(rec)...)
}
