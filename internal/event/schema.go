package event

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// schema checks payload documents against schema.cue.
// A cue.Context is not safe for concurrent use, so every check holds mu.
type schema struct {
	mu       sync.Mutex
	ctx      *cue.Context
	payloads cue.Value
}

var loadSchema = sync.OnceValues(func() (*schema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}
	payloads := root.LookupPath(cue.ParsePath("payloads"))
	if err := payloads.Err(); err != nil {
		return nil, fmt.Errorf("lookup payload schema: %w", err)
	}
	return &schema{ctx: ctx, payloads: payloads}, nil
})

// check validates a JSON payload document for t.
func (s *schema) check(t Type, doc []byte) *ValidationError {
	s.mu.Lock()
	defer s.mu.Unlock()

	def := s.payloads.LookupPath(cue.MakePath(cue.Str(string(t))))
	if !def.Exists() {
		return invalid(CodeUnknownType, t, "type", "no schema for event type %q", t)
	}

	value := s.ctx.CompileBytes(doc, cue.Filename("payload.json"))
	if err := value.Err(); err != nil {
		return invalid(CodeMalformedPayload, t, "payload", "parse payload: %v", err)
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		field, msg := describe(t, err)
		return invalid(CodeInvalidField, t, field, "%s", msg)
	}
	return nil
}

// describe extracts the offending field path and message from a CUE error.
// Paths are reported relative to the payload root.
func describe(t Type, err error) (string, string) {
	for _, e := range cueerrors.Errors(err) {
		path := e.Path()
		if len(path) >= 2 && path[0] == "payloads" && path[1] == string(t) {
			path = path[2:]
		}
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if len(path) == 0 {
			return "payload", msg
		}
		return strings.Join(path, "."), msg
	}
	return "payload", err.Error()
}
