package util

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/jmespath/go-jmespath"
)

// Projector evaluates a compiled JMESPath expression against log messages.
type Projector struct {
	expr  string
	query *jmespath.JMESPath
}

// CompileProjection parses expr once so it can be applied to many messages.
func CompileProjection(expr string) (*Projector, error) {
	q, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid JMESPath %q: %w", expr, err)
	}
	return &Projector{expr: expr, query: q}, nil
}

// String returns the source expression.
func (p *Projector) String() string { return p.expr }

// Apply evaluates the expression against message (decoded as JSON if
// possible; otherwise wrapped as {"message": raw}) and returns the string
// representation of the result. Non-string results are JSON encoded.
// Returns ("", false, nil) when the result is empty.
func (p *Projector) Apply(message string) (string, bool, error) {
	res, err := p.query.Search(messageInput(message))
	if err != nil {
		return "", false, fmt.Errorf("jmespath search failed: %w", err)
	}
	if isEmpty(res) {
		return "", false, nil
	}
	if v, ok := res.(string); ok {
		return v, true, nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return "", false, fmt.Errorf("marshal result failed: %w", err)
	}
	return string(b), true, nil
}

func messageInput(raw string) any {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
		return decoded
	}
	return map[string]any{"message": raw}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}
