// Package logging builds the service logger
package logging

import (
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
)

// NewLogger creates the structured logger backing ectologger. Pretty mode
// switches to human-readable console output.
func NewLogger(pretty bool) (ectologger.Logger, error) {
	var zapLogger *zap.Logger
	var err error
	if pretty {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}

	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}
