package item

import (
	"fmt"

	"github.com/chazu/rjs/wire"
)

// Severity of a Status.
type Severity byte

const (
	SeverityOK      Severity = 0
	SeverityInfo    Severity = 1
	SeverityWarning Severity = 2
	SeverityError   Severity = 4
	SeverityCancel  Severity = 8
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCancel:
		return "CANCEL"
	}
	return fmt.Sprintf("Severity(%d)", byte(s))
}

// Status codes.
const (
	CodeNone               int32 = 0
	CodeStopped            int32 = 0x0010
	CodeDisconnected       int32 = 0x0011
	CodeClientError        int32 = 0x0012
	CodeInternal           int32 = 0x1001
	CodeInvalidExpression  int32 = 0x1003
	CodeInvalidFunction    int32 = 0x1004
	CodeEvalVoidFailed     int32 = 0x1011
	CodeEvalDataFailed     int32 = 0x1013
	CodeEvalFunctionFailed int32 = 0x1014
	CodeInvalidReference   int32 = 0x1021
	CodeAssignMissing      int32 = 0x1032
	CodeAssignFailed       int32 = 0x1033
	CodeAssignUnsupported  int32 = 0x1037
	CodeNewS4Failed        int32 = 0x1038
	CodeInvalidLanguage    int32 = 0x1039
	CodeCancelTimeout      int32 = 0x2011
	CodeGraphicsFailed     int32 = 0x3001
)

// Status is the outcome of a unit of work: severity, code and message.
type Status struct {
	Severity Severity
	Code     int32
	Message  string
}

func NewStatus(sev Severity, code int32, msg string) *Status {
	return &Status{Severity: sev, Code: code, Message: msg}
}

// OK is the plain success status.
func OK() *Status { return &Status{Severity: SeverityOK} }

// Stopped reports that the engine is no longer running.
func Stopped(sev Severity) *Status {
	return NewStatus(sev, CodeStopped, "Engine stopped.")
}

// Cancelled answers work that was given up on request.
func Cancelled() *Status {
	return NewStatus(SeverityCancel, CodeNone, "")
}

// Disconnected reports that the calling client is not (or no longer) bound.
func Disconnected(sev Severity) *Status {
	return NewStatus(sev, CodeDisconnected, "Client disconnected.")
}

// InternalError is the generic failure reported for unexpected server faults.
func InternalError() *Status {
	return NewStatus(SeverityError, CodeInternal, "Internal server error (see server log).")
}

// IsOK reports whether s is nil or has severity OK.
func (s *Status) IsOK() bool { return s == nil || s.Severity == SeverityOK }

func (s *Status) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %#x %q", s.Severity, s.Code, s.Message)
}

// WriteStatus encodes s.
func WriteStatus(w *wire.Writer, s *Status) {
	w.PutByte(byte(s.Severity))
	w.PutInt32(s.Code)
	w.PutString(s.Message)
}

// ReadStatus decodes a status written by WriteStatus.
func ReadStatus(r *wire.Reader) *Status {
	s := &Status{Severity: Severity(r.GetByte())}
	switch s.Severity {
	case SeverityOK, SeverityInfo, SeverityWarning, SeverityError, SeverityCancel:
	default:
		r.Failf("unknown severity %d", s.Severity)
		return nil
	}
	s.Code = r.GetInt32()
	s.Message = r.GetString()
	return s
}
