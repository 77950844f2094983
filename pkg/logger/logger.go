package logger

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with registry-specific helpers
type Logger struct {
	*logrus.Logger
}

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// WithFields creates a new logger entry with the specified fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithField creates a new logger entry with a single field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithError creates a new logger entry with an error field
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}

// WithDID creates a new logger entry with the caller's DID
func (l *Logger) WithDID(did string) *logrus.Entry {
	return l.Logger.WithField("did", did)
}

// WithProducer creates a new logger entry with a producer address field
func (l *Logger) WithProducer(producer string) *logrus.Entry {
	return l.Logger.WithField("producer", producer)
}

// WithRecord creates a new logger entry with a record ID field
func (l *Logger) WithRecord(recordID string) *logrus.Entry {
	return l.Logger.WithField("record_id", recordID)
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// Audit logs authorization decisions with structured format
func (l *Logger) Audit(did, action, resource string, success bool, details map[string]interface{}) {
	entry := l.Logger.WithFields(logrus.Fields{
		"audit":    true,
		"did":      did,
		"action":   action,
		"resource": resource,
		"success":  success,
		"details":  details,
	})

	if success {
		entry.Info("Audit event")
	} else {
		entry.Warn("Audit event failed")
	}
}

// Security logs security-related events
func (l *Logger) Security(event string, did string, details map[string]interface{}) {
	l.Logger.WithFields(logrus.Fields{
		"security": true,
		"event":    event,
		"did":      did,
		"details":  details,
	}).Warn("Security event")
}

// DataAccess logs record pointer access with the consuming DID
func (l *Logger) DataAccess(ctx context.Context, requesterDID, producer, recordID string, success bool, details map[string]interface{}) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"data_access": true,
		"did":         requesterDID,
		"producer":    producer,
		"record_id":   recordID,
		"success":     success,
		"details":     details,
	})

	if success {
		entry.Info("Record access granted")
	} else {
		entry.Warn("Record access denied")
	}
}

// Payment logs settlement events
func (l *Logger) Payment(ctx context.Context, recordID, consumerDID, amount string, success bool, details map[string]interface{}) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"payment":      true,
		"record_id":    recordID,
		"consumer_did": consumerDID,
		"amount":       amount,
		"success":      success,
		"details":      details,
	})

	if success {
		entry.Info("Payment processed")
	} else {
		entry.Error("Payment failed")
	}
}

// HTTPRequest logs HTTP request events
func (l *Logger) HTTPRequest(ctx context.Context, method, path, clientIP string, statusCode int, duration int64) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"http_request": true,
		"method":       method,
		"path":         path,
		"client_ip":    clientIP,
		"status_code":  statusCode,
		"duration_ms":  duration,
	})

	if statusCode >= 400 {
		entry.Warn("HTTP request completed with error")
	} else {
		entry.Info("HTTP request completed")
	}
}

// WithContext creates a logger with context-aware fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithFields(logrus.Fields{})

	if requestID := ctx.Value("request_id"); requestID != nil {
		entry = entry.WithField("request_id", requestID)
	}

	if did := ctx.Value("did"); did != nil {
		entry = entry.WithField("did", did)
	}

	return entry
}
