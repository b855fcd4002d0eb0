package auth

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger used across the package.
type Logger = glog.Logger

// LoggerProvider hands out named loggers.
type LoggerProvider = glog.LoggerProvider

// ResolveLogger returns a provider and a named logger, falling back to the
// explicit logger when the provider yields nothing and to a console logger
// when neither is configured.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) (LoggerProvider, Logger) {
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			return provider, named
		}
	}

	if logger != nil {
		return staticLoggerProvider{logger: logger}, logger
	}

	base := defaultLogger()
	provider = glog.ProviderFromLogger(base)
	if named := provider.GetLogger(name); named != nil {
		return provider, named
	}

	return staticLoggerProvider{logger: base}, base
}

func defaultLogger() *glog.BaseLogger {
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Info),
		glog.WithName("auth"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

type staticLoggerProvider struct {
	logger Logger
}

func (s staticLoggerProvider) GetLogger(string) Logger {
	return s.logger
}
