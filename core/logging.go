package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ProductionLogger is the default Logger implementation: text output for
// local development, JSON when running under Kubernetes (detected via
// KUBERNETES_SERVICE_HOST), level from TOOLROUTE_LOG_LEVEL.
type ProductionLogger struct {
	level  int
	format string
	output io.Writer
	mu     sync.Mutex
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

// NewProductionLogger creates a logger configured from the environment.
func NewProductionLogger() *ProductionLogger {
	level := levelInfo
	switch strings.ToUpper(os.Getenv("TOOLROUTE_LOG_LEVEL")) {
	case "DEBUG":
		level = levelDebug
	case "WARN", "WARNING":
		level = levelWarn
	case "ERROR":
		level = levelError
	}

	format := "text"
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		format = "json"
	}
	if v := os.Getenv("TOOLROUTE_LOG_FORMAT"); v == "json" || v == "text" {
		format = v
	}

	return &ProductionLogger{
		level:  level,
		format: format,
		output: os.Stderr,
	}
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(levelDebug, "DEBUG", msg, fields)
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log(levelInfo, "INFO", msg, fields)
}

func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(levelWarn, "WARN", msg, fields)
}

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	l.log(levelError, "ERROR", msg, fields)
}

func (l *ProductionLogger) log(level int, name, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		entry := make(map[string]interface{}, len(fields)+3)
		for k, v := range fields {
			entry[k] = v
		}
		entry["ts"] = time.Now().Format(time.RFC3339Nano)
		entry["level"] = name
		entry["msg"] = msg
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(l.output, string(data))
		}
		return
	}

	// Text format: stable field order for readability
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(time.Now().Format("15:04:05.000"))
	b.WriteString(" [")
	b.WriteString(name)
	b.WriteString("] ")
	b.WriteString(msg)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	fmt.Fprintln(l.output, b.String())
}
