package logging

import (
	"go.uber.org/zap"
)

// New returns a production JSON logger for the "production" environment and
// a human-readable development logger otherwise.
func New(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
