// ==============================================================================
// LOGGER PACKAGE - pkg/logger/logger.go
// ==============================================================================
package logger

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Logger emits one JSON line per call. Services attach contextual fields
// (entity ids, amounts, error text) to every message.
type Logger interface {
	Info(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
}

func New(serviceName string) Logger {
	return &jsonLogger{
		service: serviceName,
		out:     log.New(os.Stdout, "", 0),
	}
}

type jsonLogger struct {
	service string
	out     *log.Logger
}

func (l *jsonLogger) Info(message string, fields map[string]interface{}) {
	l.emit("info", message, fields)
}

func (l *jsonLogger) Warn(message string, fields map[string]interface{}) {
	l.emit("warn", message, fields)
}

func (l *jsonLogger) Error(message string, fields map[string]interface{}) {
	l.emit("error", message, fields)
}

func (l *jsonLogger) emit(level, message string, fields map[string]interface{}) {
	entry := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		entry[k] = v
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	entry["level"] = level
	entry["service"] = l.service
	entry["message"] = message

	line, _ := json.Marshal(entry)
	l.out.Println(string(line))
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Info(message string, fields map[string]interface{})  {}
func (nopLogger) Warn(message string, fields map[string]interface{})  {}
func (nopLogger) Error(message string, fields map[string]interface{}) {}
