// Package logger provides structured logging for the arena server.
// Every battle action should be traceable through this.
package logger

import (
	"io"
	"log"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Logger provides structured logging with context.
type Logger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	printer     *message.Printer
}

// NewLogger creates a new logger instance writing to stdout/stderr.
func NewLogger() *Logger {
	return NewWithWriters(os.Stdout, os.Stderr)
}

// NewWithWriters creates a logger with explicit sinks. Info and Warn go to out.
func NewWithWriters(out, errOut io.Writer) *Logger {
	return &Logger{
		infoLogger:  log.New(out, "[ARENA-INFO] ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(out, "[ARENA-WARN] ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(errOut, "[ARENA-ERROR] ", log.Ldate|log.Ltime|log.Lshortfile),
		printer:     message.NewPrinter(language.English),
	}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return NewWithWriters(io.Discard, io.Discard)
}

// Info logs informational messages.
func (l *Logger) Info(msg string) {
	l.infoLogger.Output(2, msg)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string) {
	l.warnLogger.Output(2, msg)
}

// Error logs error messages.
func (l *Logger) Error(msg string) {
	l.errorLogger.Output(2, msg)
}

// Infof formats through the locale printer so counts read as 12,345.
func (l *Logger) Infof(format string, args ...any) {
	l.infoLogger.Output(2, l.printer.Sprintf(format, args...))
}

// Warnf is the formatted variant of Warn.
func (l *Logger) Warnf(format string, args ...any) {
	l.warnLogger.Output(2, l.printer.Sprintf(format, args...))
}

// Errorf is the formatted variant of Error.
func (l *Logger) Errorf(format string, args ...any) {
	l.errorLogger.Output(2, l.printer.Sprintf(format, args...))
}

// Event logs a specific battle event for audit.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.infoLogger.Output(2, "[EVENT:"+eventType+"] Actor:"+actorID+" | "+details)
}
