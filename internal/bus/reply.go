package bus

import (
	"fmt"
	"strings"
)

// Reply is one parsed response line such as "STATUS state=streaming run=1f2e".
type Reply struct {
	Kind   string
	Fields []Field
}

type Field struct {
	Key   string
	Value string
}

// FormatReply renders kind followed by key=value pairs. Values must not
// contain spaces.
func FormatReply(kind string, fields ...Field) string {
	var b strings.Builder
	b.WriteString(kind)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%s", f.Key, f.Value)
	}
	b.WriteByte('\n')
	return b.String()
}

// ParseReply splits a response line. ERR replies are returned as errors.
func ParseReply(line string) (Reply, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return Reply{}, fmt.Errorf("empty reply")
	}
	r := Reply{Kind: tokens[0]}
	if r.Kind == "ERR" {
		return r, fmt.Errorf("daemon error: %s", strings.Join(tokens[1:], " "))
	}
	for _, tok := range tokens[1:] {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return Reply{}, fmt.Errorf("malformed reply field %q", tok)
		}
		r.Fields = append(r.Fields, Field{Key: key, Value: value})
	}
	return r, nil
}

// Get returns the value for key, or "" when absent.
func (r Reply) Get(key string) string {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}
