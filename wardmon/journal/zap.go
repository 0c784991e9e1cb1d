package journal

import (
	"go.uber.org/zap"
	"wardmon.dev/wardmon"
)

type zapJournaler struct {
	log *zap.Logger
}

// NewZapJournaler creates a journaler that mirrors events into a zap logger,
// warnings at warn level and everything else at info. It is meant to be
// combined with a file journaler through MultiWriter so that operators see on
// stderr what lands in the journal.
func NewZapJournaler(log *zap.Logger) wardmon.Journaler {
	return &zapJournaler{log}
}

func (z *zapJournaler) Write(ev wardmon.Event) error {
	if w, ok := ev.(*wardmon.EventWarning); ok {
		z.log.Warn(w.Type(),
			zap.String("component", w.Component),
			zap.String("error", w.Error))
		return nil
	}

	z.log.Info(ev.Type(), zap.Any("event", ev))
	return nil
}
