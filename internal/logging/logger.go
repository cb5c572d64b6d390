package logging

import (
	"github.com/rs/zerolog"
)

// Severity is the level of a log entry written through Logger.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Logger receives diagnostic output. Implementations must not panic.
type Logger interface {
	Write(sev Severity, msg string)
	WriteError(sev Severity, err error)
}

// Contextual is implemented by loggers that can attach a field.
type Contextual interface {
	With(key, value string) Logger
}

// With returns l with key=value attached. Loggers without field support get
// the pair prefixed to each message instead.
func With(l Logger, key, value string) Logger {
	if c, ok := l.(Contextual); ok {
		return c.With(key, value)
	}
	return prefixed{next: l, prefix: key + "=" + value + " "}
}

type prefixed struct {
	next   Logger
	prefix string
}

func (p prefixed) Write(sev Severity, msg string) {
	p.next.Write(sev, p.prefix+msg)
}

func (p prefixed) WriteError(sev Severity, err error) {
	if err == nil {
		return
	}
	p.next.Write(sev, p.prefix+err.Error())
}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop{} }

type nop struct{}

func (nop) Write(Severity, string)     {}
func (nop) WriteError(Severity, error) {}

// FromZerolog adapts a zerolog logger.
func FromZerolog(l zerolog.Logger) Logger {
	return zlog{l: l}
}

type zlog struct {
	l zerolog.Logger
}

func (z zlog) Write(sev Severity, msg string) {
	z.event(sev).Msg(msg)
}

func (z zlog) WriteError(sev Severity, err error) {
	if err == nil {
		return
	}
	z.event(sev).Err(err).Send()
}

func (z zlog) With(key, value string) Logger {
	return zlog{l: z.l.With().Str(key, value).Logger()}
}

func (z zlog) event(sev Severity) *zerolog.Event {
	switch sev {
	case SeverityDebug:
		return z.l.Debug()
	case SeverityWarn:
		return z.l.Warn()
	default:
		return z.l.Error()
	}
}
