package logging

import (
	"time"

	"go.uber.org/zap"
)

// RequestID creates the request_id field.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method creates the method field.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path creates the path field.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status creates the status field.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration creates the duration field.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// Bytes creates the bytes field.
func Bytes(v int) zap.Field {
	return zap.Int("bytes", v)
}

// UserID creates the user_id field.
func UserID(v int64) zap.Field {
	return zap.Int64("user_id", v)
}
