package log

import (
	"fmt"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// emojiMap maps log types to emoji prefixes.
// Callers attach a "type" field to a log entry and the console encoder
// picks the matching emoji automatically.
var emojiMap = map[string]string{
	"api":          "🔗",
	"auth":         "🔓",
	"request":      "🌐",
	"success":      "✅",
	"error":        "❌",
	"warning":      "⚠️",
	"database":     "💾",
	"redis":        "📦",
	"rate_limit":   "🚦",
	"scheduler":    "🎯",
	"startup":      "🚀",
	"performance":  "⏱️",
	"audit":        "📋",
	"security":     "🔒",
	"provider":     "✈️", // flight data provider calls
	"failover":     "🔀",  // provider failover events
	"breaker":      "⚡",  // circuit breaker transitions
	"monitor":      "📡",  // disruption monitor sweeps
	"health":       "🩺",  // provider health checks
	"disruption":   "🚨",  // disruption detected
	"compensation": "💰",  // compensation calculations
	"wallet":       "👛",  // wallet credits
	"booking":      "🎫",  // booking import and lookup
	"slow_request": "🐌",  // slow request warning
	"cache_stats":  "🧹",  // cache statistics
	"error_count":  "⚠️", // error counter
}

// statusEmoji returns an emoji based on the HTTP status code
func statusEmoji(status int) string {
	if status >= 500 {
		return "🔴"
	} else if status >= 400 {
		return "🟠"
	} else if status >= 300 {
		return "🟡"
	}
	return "🟢"
}

// EmojiConsoleEncoder wraps Zap's ConsoleEncoder and prepends an emoji
// to each entry. Zero intrusion: the wrapped encoder does the real work.
type EmojiConsoleEncoder struct {
	zapcore.Encoder
	config zapcore.EncoderConfig
}

// NewEmojiConsoleEncoder creates a console encoder with emoji prefixes
func NewEmojiConsoleEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &EmojiConsoleEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
		config:  cfg,
	}
}

// EncodeEntry encodes a log entry, prepending the matching emoji
func (enc *EmojiConsoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	// Extract the "type" and "status" fields
	var logType string
	var status int64

	for _, field := range fields {
		if field.Key == "type" && field.Type == zapcore.StringType {
			logType = field.String
		} else if field.Key == "status" && (field.Type == zapcore.Int64Type || field.Type == zapcore.Int32Type) {
			status = field.Integer
		}
	}

	// Emoji selection priority:
	// 1. HTTP status code (when present)
	// 2. "type" field mapping
	// 3. log level default
	emoji := ""
	if status > 0 {
		emoji = statusEmoji(int(status))
	} else if logType != "" {
		if e, ok := emojiMap[logType]; ok {
			emoji = e
		}
	}

	// Fall back to level-based emoji
	if emoji == "" {
		switch entry.Level {
		case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
			emoji = "❌"
		case zapcore.WarnLevel:
			emoji = "⚠️"
		case zapcore.InfoLevel:
			emoji = "ℹ️"
		case zapcore.DebugLevel:
			emoji = "🐛"
		}
	}

	// Prepend emoji to the message
	if emoji != "" {
		entry.Message = emoji + " " + entry.Message
	}

	// Delegate the actual encoding to the wrapped encoder
	return enc.Encoder.EncodeEntry(entry, fields)
}

// Clone clones the encoder (used internally by Zap)
func (enc *EmojiConsoleEncoder) Clone() zapcore.Encoder {
	return &EmojiConsoleEncoder{
		Encoder: enc.Encoder.Clone(),
		config:  enc.config,
	}
}

// AddEmojiToMap registers a custom emoji mapping.
// Useful for extensions registering their own log types at startup.
func AddEmojiToMap(logType, emoji string) {
	emojiMap[logType] = emoji
}

// GetEmojiMap returns a copy of the current emoji mapping (for debugging and tests)
func GetEmojiMap() map[string]string {
	// Return a copy so callers cannot mutate the shared map
	result := make(map[string]string, len(emojiMap))
	for k, v := range emojiMap {
		result[k] = v
	}
	return result
}

// formatDuration renders a millisecond duration in human form.
// Examples: 1ms, 150ms, 2.5s
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	return fmt.Sprintf("%.1fs", seconds)
}
