package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names for consistent structured logging.
const (
	FieldComponent  = "component"
	FieldQueryID    = "query_id"
	FieldSort       = "sort"
	FieldMinDegree  = "min_degree"
	FieldCount      = "count"
	FieldDurationMS = "duration_ms"
	FieldSource     = "source"
	FieldPath       = "path"
	FieldAddress    = "address"
)

// New builds the process logger: a colored development logger at debug level
// when verbose, a JSON production logger at info level otherwise.
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// Component returns a child logger tagged with a component name.
func Component(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.With(zap.String(FieldComponent, name))
}
