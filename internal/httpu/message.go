package httpu

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Start line constants
const (
	MethodSearch = "M-SEARCH" // Search request method
	MethodNotify = "NOTIFY"   // Advertisement method
	ProtoHTTP11  = "HTTP/1.1" // Only protocol version sent on the wire
	TargetAll    = "*"        // Request target for every SSDP request
	StatusOK     = 200        // Status code of a search response
	ReasonOK     = "OK"       // Reason phrase of a search response
)

const (
	crlf        = "\r\n"
	protoPrefix = "HTTP/"
	trailingWS  = " \t\r"
)

// Message is one decoded HTTPU datagram. Requests carry Method and Target,
// responses carry StatusCode and Reason. Both carry Proto and Header.
type Message struct {
	Method     string
	Target     string
	Proto      string
	StatusCode int
	Reason     string
	Header     Header
}

// NewRequest creates a request message with the "*" target.
func NewRequest(method string) *Message {
	return &Message{
		Method: method,
		Target: TargetAll,
		Proto:  ProtoHTTP11,
	}
}

// NewResponse creates a response message.
func NewResponse(code int, reason string) *Message {
	return &Message{
		Proto:      ProtoHTTP11,
		StatusCode: code,
		Reason:     reason,
	}
}

// IsRequest reports whether the message has a request line
func (m *Message) IsRequest() bool {
	return m.Method != ""
}

// IsResponse reports whether the message has a status line
func (m *Message) IsResponse() bool {
	return m.Method == "" && m.StatusCode != 0
}

// StartLine renders the request or status line without line ending.
func (m *Message) StartLine() string {
	proto := m.Proto
	if proto == "" {
		proto = ProtoHTTP11
	}
	if m.IsRequest() {
		target := m.Target
		if target == "" {
			target = TargetAll
		}
		return m.Method + " " + target + " " + proto
	}
	line := proto + " " + strconv.Itoa(m.StatusCode)
	if m.Reason != "" {
		line += " " + m.Reason
	}
	return line
}

// Bytes encodes the message. See Encode.
func (m *Message) Bytes() []byte {
	return Encode(m)
}

// String returns a debug representation of the message
func (m *Message) String() string {
	return fmt.Sprintf("HTTPU{%q, %d headers}", m.StartLine(), m.Header.Len())
}

// Encode renders the message in wire form: start line, one "Name: value"
// line per header field in order, and a terminating blank line. Every line
// ends in CRLF. An empty value is written as "Name:".
func Encode(m *Message) []byte {
	var buf bytes.Buffer
	buf.WriteString(m.StartLine())
	buf.WriteString(crlf)
	for _, f := range m.Header.fields {
		buf.WriteString(f.Name)
		buf.WriteByte(':')
		if f.Value != "" {
			buf.WriteByte(' ')
			buf.WriteString(f.Value)
		}
		buf.WriteString(crlf)
	}
	buf.WriteString(crlf)
	return buf.Bytes()
}

// Decode parses one datagram. It accepts CRLF or bare LF line endings,
// trailing whitespace on any line and a missing final blank line. Anything
// after the first blank line is ignored.
func Decode(data []byte) (*Message, error) {
	lines := strings.Split(string(data), "\n")

	first := strings.TrimRight(lines[0], trailingWS)
	msg, err := parseStartLine(first)
	if err != nil {
		return nil, err
	}

	for _, raw := range lines[1:] {
		line := strings.TrimRight(raw, trailingWS)
		if line == "" {
			break
		}
		name, value, err := parseHeaderLine(line)
		if err != nil {
			return nil, err
		}
		msg.Header.Add(name, value)
	}

	return msg, nil
}

func parseStartLine(line string) (*Message, error) {
	line = strings.TrimLeft(line, " \t")
	if line == "" {
		return nil, malformedStartLine(line)
	}

	parts := strings.Fields(line)
	if len(parts) < 2 {
		return nil, malformedStartLine(line)
	}

	// Status line: HTTP/1.1 200 OK (reason may contain spaces or be absent)
	if strings.HasPrefix(parts[0], protoPrefix) {
		code, err := strconv.Atoi(parts[1])
		if err != nil || code < 100 || code > 999 {
			return nil, malformedStartLine(line)
		}
		return &Message{
			Proto:      parts[0],
			StatusCode: code,
			Reason:     strings.Join(parts[2:], " "),
		}, nil
	}

	// Request line: METHOD target HTTP/1.1
	if len(parts) != 3 || !strings.HasPrefix(parts[2], protoPrefix) {
		return nil, malformedStartLine(line)
	}
	return &Message{
		Method: parts[0],
		Target: parts[1],
		Proto:  parts[2],
	}, nil
}

func parseHeaderLine(line string) (string, string, error) {
	name, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", malformedHeaderLine(line)
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", "", malformedHeaderLine(line)
	}
	return name, strings.TrimSpace(value), nil
}

// Require returns a MissingRequiredHeader error for the first name that is
// absent from the message.
func Require(m *Message, names ...string) error {
	for _, name := range names {
		if !m.Header.Has(name) {
			return ErrMissingHeader(name)
		}
	}
	return nil
}
