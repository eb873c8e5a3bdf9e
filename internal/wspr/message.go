package wspr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrShortReply   = errors.New("short reply")
	ErrNotReply     = errors.New("not a reply")
	ErrUnknownCode  = errors.New("unknown reply code")
	ErrInvalidValue = errors.New("invalid value")
)

// Op is the request operation.
type Op byte

const (
	OpGet Op = 'G'
	OpSet Op = 'S'
)

// Request is a host to device message, "[CCC] G" or "[CCC] S value".
type Request struct {
	Code  Code
	Op    Op
	Value string
}

// Get builds a read request for code.
func Get(code Code) Request {
	return Request{Code: code, Op: OpGet}
}

// Set builds a write request for code. An empty value produces a bare
// "S", which is what CSE expects.
func Set(code Code, value string) Request {
	return Request{Code: code, Op: OpSet, Value: value}
}

// String returns the request without its line terminator.
func (r Request) String() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(r.Code))
	b.WriteString("] ")
	b.WriteByte(byte(r.Op))
	if r.Value != "" {
		b.WriteByte(' ')
		b.WriteString(r.Value)
	}
	return b.String()
}

// Encode returns the bytes written to the port.
func (r Request) Encode() []byte {
	return []byte(r.String() + "\r\n")
}

// Reply is a device to host message, "{CCC} data".
type Reply struct {
	Code Code
	Data string
}

func (r Reply) String() string {
	return "{" + string(r.Code) + "} " + r.Data
}

// ParseReply decodes one received line. Some firmware omits the space
// after the closing brace, so data may start right after it.
func ParseReply(line string) (Reply, error) {
	line = strings.TrimRight(line, " \r\n")
	if len(line) < 5 {
		return Reply{}, fmt.Errorf("%w: %q", ErrShortReply, line)
	}
	if line[0] != '{' || line[4] != '}' {
		return Reply{}, fmt.Errorf("%w: %q", ErrNotReply, line)
	}
	r := Reply{Code: Code(line[1:4])}
	if len(line) > 5 {
		if line[5] == ' ' {
			r.Data = line[6:]
		} else {
			r.Data = line[5:]
		}
	}
	if !r.Code.Known() {
		return r, fmt.Errorf("%w: %s", ErrUnknownCode, r.Code)
	}
	return r, nil
}

// IsReplyLine reports whether a received line looks like a reply at all.
// Anything else is boot noise or firmware debug output.
func IsReplyLine(line string) bool {
	return strings.HasPrefix(line, "{")
}
