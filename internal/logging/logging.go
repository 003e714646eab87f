// Package logging provides logger creation.
package logging

import (
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"os"

	"github.com/dekarrin/jellog"
	"github.com/dekarrin/tabula"
	"github.com/rs/zerolog"
)

// New creates a new logger of the given provider. If filename is blank, it will
// not log to disk, only stderr, and the stderr logger will be configured at
// trace level instead of info level.
func New(p tabula.LogProvider, filename string) (tabula.Logger, error) {
	var err error

	switch p {
	case tabula.NoLog:
		return nil, errors.New("log provider cannot be NoLog")
	case tabula.Jellog:
		var logOut *jellog.FileHandler
		if filename != "" {
			logOut, err = jellog.OpenFile(filename, nil)
			if err != nil {
				return nil, fmt.Errorf("open logfile: %q: %w", filename, err)
			}
		}
		j := jellog.New(jellog.Defaults[string]().WithComponent("tabula"))

		if filename != "" {
			j.AddHandler(jellog.LvTrace, logOut)
			j.AddHandler(jellog.LvInfo, jellog.NewStderrHandler(nil))
		} else {
			j.AddHandler(jellog.LvTrace, jellog.NewStderrHandler(nil))
		}

		return jellogLogger{j: j}, nil
	case tabula.StdLog:
		var logWriter io.Writer = os.Stderr
		if filename != "" {
			fileWriter, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				return nil, fmt.Errorf("open logfile: %q: %w", filename, err)
			}
			logWriter = io.MultiWriter(os.Stderr, fileWriter)
		}
		return stdLogger{std: stdlog.New(logWriter, "", stdlog.Ldate|stdlog.Ltime|stdlog.LUTC)}, nil
	case tabula.Zerolog:
		var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
		if filename != "" {
			fileWriter, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				return nil, fmt.Errorf("open logfile: %q: %w", filename, err)
			}
			out = zerolog.MultiLevelWriter(
				fileWriter,
				&zerolog.FilteredLevelWriter{
					Writer: zerolog.LevelWriterAdapter{Writer: out},
					Level:  zerolog.InfoLevel,
				},
			)
		}
		zl := zerolog.New(out).Level(zerolog.TraceLevel).With().Timestamp().Str("component", "tabula").Logger()
		return zerologLogger{z: zl}, nil
	default:
		return nil, fmt.Errorf("unknown provider: %q", p.String())
	}
}

// NoOpLogger is a logger that performs no operations.
type NoOpLogger struct{}

func (log NoOpLogger) Debug(msg string)                    {}
func (log NoOpLogger) Warn(msg string)                     {}
func (log NoOpLogger) Trace(msg string)                    {}
func (log NoOpLogger) Info(msg string)                     {}
func (log NoOpLogger) Error(msg string)                    {}
func (log NoOpLogger) Debugf(msg string, a ...interface{}) {}
func (log NoOpLogger) Warnf(msg string, a ...interface{})  {}
func (log NoOpLogger) Tracef(msg string, a ...interface{}) {}
func (log NoOpLogger) Infof(msg string, a ...interface{})  {}
func (log NoOpLogger) Errorf(msg string, a ...interface{}) {}
func (log NoOpLogger) ErrorBreak()                         {}
func (log NoOpLogger) InfoBreak()                          {}
func (log NoOpLogger) WarnBreak()                          {}
func (log NoOpLogger) TraceBreak()                         {}
func (log NoOpLogger) DebugBreak()                         {}

type stdLogger struct {
	std *stdlog.Logger
}

func (log stdLogger) Trace(msg string) {
	log.std.Print("TRACE " + msg)
}

func (log stdLogger) Tracef(msg string, a ...interface{}) {
	log.std.Printf("TRACE "+msg, a...)
}

func (log stdLogger) TraceBreak() {
	log.std.Printf("")
}

func (log stdLogger) Debug(msg string) {
	log.std.Print("DEBUG " + msg)
}

func (log stdLogger) Debugf(msg string, a ...interface{}) {
	log.std.Printf("DEBUG "+msg, a...)
}

func (log stdLogger) DebugBreak() {
	log.std.Printf("")
}

func (log stdLogger) Info(msg string) {
	log.std.Print("INFO  " + msg)
}

func (log stdLogger) Infof(msg string, a ...interface{}) {
	log.std.Printf("INFO  "+msg, a...)
}

func (log stdLogger) InfoBreak() {
	log.std.Printf("")
}

func (log stdLogger) Warn(msg string) {
	log.std.Print("WARN  " + msg)
}

func (log stdLogger) Warnf(msg string, a ...interface{}) {
	log.std.Printf("WARN  "+msg, a...)
}

func (log stdLogger) WarnBreak() {
	log.std.Printf("")
}

func (log stdLogger) Error(msg string) {
	log.std.Print("ERROR " + msg)
}

func (log stdLogger) Errorf(msg string, a ...interface{}) {
	log.std.Printf("ERROR "+msg, a...)
}

func (log stdLogger) ErrorBreak() {
	log.std.Printf("")
}

type jellogLogger struct {
	j jellog.Logger[string]
}

func (log jellogLogger) Debug(msg string) {
	log.j.Debug(msg)
}

func (log jellogLogger) Debugf(msg string, a ...interface{}) {
	log.j.Debugf(msg, a...)
}

func (log jellogLogger) Warn(msg string) {
	log.j.Warn(msg)
}

func (log jellogLogger) Warnf(msg string, a ...interface{}) {
	log.j.Warnf(msg, a...)
}

func (log jellogLogger) Trace(msg string) {
	log.j.Trace(msg)
}

func (log jellogLogger) Tracef(msg string, a ...interface{}) {
	log.j.Tracef(msg, a...)
}

func (log jellogLogger) Info(msg string) {
	log.j.Info(msg)
}

func (log jellogLogger) Infof(msg string, a ...interface{}) {
	log.j.Infof(msg, a...)
}

func (log jellogLogger) Error(msg string) {
	log.j.Error(msg)
}

func (log jellogLogger) Errorf(msg string, a ...interface{}) {
	log.j.Errorf(msg, a...)
}

func (log jellogLogger) ErrorBreak() {
	log.j.InsertBreak(jellog.LvError)
}

func (log jellogLogger) InfoBreak() {
	log.j.InsertBreak(jellog.LvInfo)
}

func (log jellogLogger) WarnBreak() {
	log.j.InsertBreak(jellog.LvWarn)
}

func (log jellogLogger) TraceBreak() {
	log.j.InsertBreak(jellog.LvTrace)
}

func (log jellogLogger) DebugBreak() {
	log.j.InsertBreak(jellog.LvDebug)
}

// zerologLogger has no notion of a break, so breaks are written as empty
// events.
type zerologLogger struct {
	z zerolog.Logger
}

func (log zerologLogger) Trace(msg string) {
	log.z.Trace().Msg(msg)
}

func (log zerologLogger) Tracef(msg string, a ...interface{}) {
	log.z.Trace().Msgf(msg, a...)
}

func (log zerologLogger) TraceBreak() {
	log.z.Trace().Send()
}

func (log zerologLogger) Debug(msg string) {
	log.z.Debug().Msg(msg)
}

func (log zerologLogger) Debugf(msg string, a ...interface{}) {
	log.z.Debug().Msgf(msg, a...)
}

func (log zerologLogger) DebugBreak() {
	log.z.Debug().Send()
}

func (log zerologLogger) Info(msg string) {
	log.z.Info().Msg(msg)
}

func (log zerologLogger) Infof(msg string, a ...interface{}) {
	log.z.Info().Msgf(msg, a...)
}

func (log zerologLogger) InfoBreak() {
	log.z.Info().Send()
}

func (log zerologLogger) Warn(msg string) {
	log.z.Warn().Msg(msg)
}

func (log zerologLogger) Warnf(msg string, a ...interface{}) {
	log.z.Warn().Msgf(msg, a...)
}

func (log zerologLogger) WarnBreak() {
	log.z.Warn().Send()
}

func (log zerologLogger) Error(msg string) {
	log.z.Error().Msg(msg)
}

func (log zerologLogger) Errorf(msg string, a ...interface{}) {
	log.z.Error().Msgf(msg, a...)
}

func (log zerologLogger) ErrorBreak() {
	log.z.Error().Send()
}
