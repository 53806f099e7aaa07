// File: cmd/minidump_stack.go

package cmd

import (
	"regexp"
	"strings"
)

// stackFrameRE matches one line of cdb stack output: one or more hex
// argument fields followed by either a bare address or module[!location].
// The address branch comes first so "0x..." never parses as a module.
var stackFrameRE = regexp.MustCompile(`(?i)^(?:[0-9a-f]+ +)+(?:(0x[0-9a-f]+)|([^ !]+)(?:!(.*))?)$`)

// unknownLocation is rendered for symbolic frames that carry no location.
const unknownLocation = "unknown"

// StackFrame is a single parsed frame. Exactly one of Address or Module is set.
type StackFrame struct {
	Address     string `json:"address,omitempty" yaml:"address,omitempty"`
	Module      string `json:"module,omitempty" yaml:"module,omitempty"`
	Location    string `json:"location,omitempty" yaml:"location,omitempty"`
	HasLocation bool   `json:"has_location,omitempty" yaml:"has_location,omitempty"`
}

// IsAddress reports whether the frame is a raw program counter.
func (f StackFrame) IsAddress() bool {
	return f.Address != ""
}

// String renders the frame as "0xADDR" or "module!location".
func (f StackFrame) String() string {
	if f.IsAddress() {
		return f.Address
	}
	location := f.Location
	if !f.HasLocation {
		location = unknownLocation
	}
	return f.Module + "!" + location
}

// ParseLine parses a single line of debugger stack output. Header lines,
// blank lines and anything else outside the frame grammar return false.
func ParseLine(line string) (StackFrame, bool) {
	m := stackFrameRE.FindStringSubmatchIndex(line)
	if m == nil {
		return StackFrame{}, false
	}
	if m[2] >= 0 {
		return StackFrame{Address: line[m[2]:m[3]]}, true
	}
	frame := StackFrame{Module: line[m[4]:m[5]]}
	if m[6] >= 0 {
		frame.Location = line[m[6]:m[7]]
		frame.HasLocation = true
	}
	return frame, true
}

// Normalizer collapses build-salted product names (for example
// "chrome_1a2b3c") into one canonical token so that stacks taken from
// different builds compare equal.
type Normalizer struct {
	Product   string
	Canonical string
	re        *regexp.Regexp
}

// DefaultNormalizer folds every salted chrome module name into chrome_dll.
var DefaultNormalizer = NewNormalizer("chrome", "chrome_dll")

// NewNormalizer builds a Normalizer replacing product followed by one or
// more [_0-9a-f] characters with canonical. The canonical token is tried
// first, which keeps NormalizeSymbol idempotent.
func NewNormalizer(product, canonical string) *Normalizer {
	pattern := `(?i)(?:` + regexp.QuoteMeta(canonical) + `|` + regexp.QuoteMeta(product) + `[_0-9a-f]+)`
	return &Normalizer{
		Product:   product,
		Canonical: canonical,
		re:        regexp.MustCompile(pattern),
	}
}

// NormalizeSymbol canonicalizes a module or symbol name.
func (n *Normalizer) NormalizeSymbol(symbol string) string {
	return n.re.ReplaceAllLiteralString(symbol, n.Canonical)
}

// NormalizeFrame returns a copy of frame with its module and location
// canonicalized. Address frames are returned unchanged.
func (n *Normalizer) NormalizeFrame(frame StackFrame) StackFrame {
	if frame.IsAddress() {
		return frame
	}
	frame.Module = n.NormalizeSymbol(frame.Module)
	if frame.HasLocation {
		frame.Location = n.NormalizeSymbol(frame.Location)
	}
	return frame
}

// ParseStack parses and normalizes every frame line, dropping the rest.
func (n *Normalizer) ParseStack(lines []string) []StackFrame {
	frames := make([]StackFrame, 0, len(lines))
	for _, line := range lines {
		if frame, ok := ParseLine(line); ok {
			frames = append(frames, n.NormalizeFrame(frame))
		}
	}
	return frames
}

// NormalizeStack renders the frames of lines in their canonical string
// form, preserving order. The result is never nil.
func (n *Normalizer) NormalizeStack(lines []string) []string {
	frames := n.ParseStack(lines)
	stack := make([]string, 0, len(frames))
	for _, frame := range frames {
		stack = append(stack, frame.String())
	}
	return stack
}

// NormalizeStack normalizes lines with DefaultNormalizer.
func NormalizeStack(lines []string) []string {
	return DefaultNormalizer.NormalizeStack(lines)
}

// findFrame returns the index of the first frame containing name, or -1.
func findFrame(stack []string, name string) int {
	for i, frame := range stack {
		if strings.Contains(frame, name) {
			return i
		}
	}
	return -1
}

// stackSignature returns the first depth frames of stack and a key
// identifying them. Frames are joined with NUL, which cdb never prints, so
// frames such as "operator|" cannot collide.
func stackSignature(stack []string, depth int) ([]string, string) {
	if len(stack) > depth {
		stack = stack[:depth]
	}
	return stack, strings.Join(stack, "\x00")
}
