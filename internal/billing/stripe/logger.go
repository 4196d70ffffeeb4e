package stripe

import "github.com/rs/zerolog"

// leveledLogger routes stripe-go's internal logging through zerolog.
type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) { l.logger.Debug().Msgf(format, v...) }
func (l leveledLogger) Infof(format string, v ...interface{})  { l.logger.Debug().Msgf(format, v...) }
func (l leveledLogger) Warnf(format string, v ...interface{})  { l.logger.Warn().Msgf(format, v...) }
func (l leveledLogger) Errorf(format string, v ...interface{}) { l.logger.Error().Msgf(format, v...) }
