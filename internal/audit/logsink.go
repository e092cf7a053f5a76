package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/automerger/internal/logfields"
)

// LogSink writes records as log messages.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink() *LogSink {
	return &LogSink{logger: zap.L().Named(loggerName)}
}

func (s *LogSink) Write(_ context.Context, rec *Record) error {
	fields := append(rec.LogFields(),
		logfields.Event("audit_record"),
		logfields.WebhookType(rec.EventType),
		zap.Int("result_code", rec.Code),
		zap.String("result_visibility", rec.Visibility),
	)

	if rec.Code != 0 {
		s.logger.Warn(rec.Reason, fields...)
		return nil
	}

	s.logger.Info(rec.Reason, fields...)

	return nil
}

func (s *LogSink) String() string {
	return "log"
}
