package logger

import "go.uber.org/zap"

// New builds the process logger. Any env other than "production" gets the
// human-readable development encoder.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
