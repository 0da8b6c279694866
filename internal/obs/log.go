package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

var (
	loggerOnce sync.Once
	logger     *log.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		logger = log.New(os.Stdout, "", 0)
	})
	return logger
}

// Emit writes a structured JSON log line. Map values must be JSON-encodable.
func Emit(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"ts":"error","level":"error","msg":"log marshal failed"}`)
		return
	}
	Logger().Println(string(data))
}

// Info emits an informational line with common fields merged in.
func Info(msg string, fields map[string]any) {
	emitLevel("info", msg, fields)
}

// Error emits an error-level line. Used for degraded-but-recovered conditions
// such as a failed audit write after a committed mutation.
func Error(msg string, fields map[string]any) {
	emitLevel("error", msg, fields)
}

// SecurityWarn emits a line on the operational security channel. Rejected
// injection payloads and exhausted rate-limit budgets land here with the
// specific signature that matched, while the caller-facing error stays
// generic. Forensic review reads this channel, not user-visible responses.
func SecurityWarn(event string, fields map[string]any) {
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "warn",
		"type":  "security",
		"event": event,
	}
	for k, v := range fields {
		entry[k] = v
	}
	Emit(entry)
}

func emitLevel(level, msg string, fields map[string]any) {
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"msg":   msg,
	}
	for k, v := range fields {
		entry[k] = v
	}
	Emit(entry)
}
