package utils

import "go.uber.org/zap"

// NewProductionLogger returns the production zap logger (JSON, info level).
func NewProductionLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

// NewLogger returns the logger for the given mode: human-readable at debug
// level when debug is set, production JSON at info level otherwise.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
