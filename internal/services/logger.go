package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Logger defines common logging interface for all services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// LogLevel represents different logging levels
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel maps LOG_LEVEL values onto a LogLevel. Unknown values mean INFO.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// redactedKeys never reach the log output with their real value.
var redactedKeys = []string{"api_key", "apikey", "token", "secret", "authorization", "password"}

const redacted = "[REDACTED]"

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range redactedKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// ProductionLogger is a structured logger for production use
type ProductionLogger struct {
	logger     *log.Logger
	level      LogLevel
	service    string
	structured bool
	now        func() time.Time
}

// NewProductionLogger creates a logger writing structured JSON to stdout at INFO.
func NewProductionLogger(service string) *ProductionLogger {
	return NewProductionLoggerTo(os.Stdout, service, LogLevelInfo)
}

// NewProductionLoggerTo creates a logger writing to w.
func NewProductionLoggerTo(w io.Writer, service string, level LogLevel) *ProductionLogger {
	return &ProductionLogger{
		logger:     log.New(w, "", 0),
		level:      level,
		service:    service,
		structured: true,
		now:        time.Now,
	}
}

// SetLevel updates the logging level
func (p *ProductionLogger) SetLevel(level LogLevel) {
	p.level = level
}

// SetStructured enables/disables structured JSON logging
func (p *ProductionLogger) SetStructured(structured bool) {
	p.structured = structured
}

func (p *ProductionLogger) Info(msg string, keysAndValues ...interface{}) {
	p.log(LogLevelInfo, msg, keysAndValues...)
}

func (p *ProductionLogger) Error(msg string, keysAndValues ...interface{}) {
	p.log(LogLevelError, msg, keysAndValues...)
}

func (p *ProductionLogger) Debug(msg string, keysAndValues ...interface{}) {
	p.log(LogLevelDebug, msg, keysAndValues...)
}

func (p *ProductionLogger) Warn(msg string, keysAndValues ...interface{}) {
	p.log(LogLevelWarn, msg, keysAndValues...)
}

func (p *ProductionLogger) log(level LogLevel, msg string, keysAndValues ...interface{}) {
	if level < p.level {
		return
	}
	timestamp := p.now().UTC().Format(time.RFC3339)
	fields := pairs(keysAndValues)

	if p.structured {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level.String(),
			"service":   p.service,
			"message":   msg,
		}
		if len(fields) > 0 {
			m := make(map[string]interface{}, len(fields))
			for _, f := range fields {
				m[f.key] = f.value
			}
			entry["fields"] = m
		}
		jsonBytes, err := json.Marshal(entry)
		if err != nil {
			p.logger.Printf(`{"level":"ERROR","service":%q,"message":"unencodable log entry: %v"}`, p.service, err)
			return
		}
		p.logger.Println(string(jsonBytes))
		return
	}

	var kv strings.Builder
	for _, f := range fields {
		kv.WriteString(fmt.Sprintf(" %s=%v", f.key, f.value))
	}
	p.logger.Printf("[%s] %s [%s] %s%s", timestamp, level.String(), p.service, msg, kv.String())
}

type logField struct {
	key   string
	value interface{}
}

// pairs turns key/value varargs into fields, stringifying errors and redacting credentials.
// A trailing key without a value is dropped.
func pairs(keysAndValues []interface{}) []logField {
	out := make([]logField, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		value := keysAndValues[i+1]
		if isSensitiveKey(key) {
			value = redacted
		} else if err, ok := value.(error); ok {
			value = err.Error()
		}
		out = append(out, logField{key: key, value: value})
	}
	return out
}

// NoOpLogger is a logger that does nothing (for testing)
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, keysAndValues ...interface{})  {}
func (n *NoOpLogger) Error(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (n *NoOpLogger) Warn(msg string, keysAndValues ...interface{})  {}

// NewLogger picks a logger from GO_ENV/ENV and LOG_LEVEL: no-op under test,
// JSON in production, human-readable elsewhere.
func NewLogger(service string) Logger {
	env := strings.ToLower(os.Getenv("GO_ENV"))
	if env == "" {
		env = strings.ToLower(os.Getenv("ENV"))
	}
	if env == "test" {
		return &NoOpLogger{}
	}

	logger := NewProductionLoggerTo(os.Stdout, service, ParseLogLevel(os.Getenv("LOG_LEVEL")))
	logger.SetStructured(env == "production")
	return logger
}
