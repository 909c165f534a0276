package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/itchyny/gojq"
)

// Response is the success envelope for JSON output.
type Response struct {
	OK          bool           `json:"ok"`
	Data        any            `json:"data,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Breadcrumbs []Breadcrumb   `json:"breadcrumbs,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Breadcrumb is a suggested follow-up action.
type Breadcrumb struct {
	Action      string `json:"action"`
	Cmd         string `json:"cmd"`
	Description string `json:"description"`
}

// ErrorResponse is the error envelope for JSON output.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Hint    string `json:"hint,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Format specifies the output format.
type Format int

const (
	FormatAuto Format = iota
	FormatJSON
	FormatMarkdown // plain markdown, safe to pipe
	FormatStyled   // ANSI, even when piped
	FormatQuiet    // bare data, no envelope
)

// Options controls output behavior.
type Options struct {
	Format Format
	Writer io.Writer
	// JQ is a jq expression applied to the JSON document before printing.
	// Setting it forces JSON output.
	JQ string
}

func DefaultOptions() Options {
	return Options{Format: FormatAuto, Writer: os.Stdout}
}

// Writer prints envelopes in the configured format.
type Writer struct {
	opts Options
	jq   *gojq.Code
}

// New creates a new output writer. An invalid JQ expression is reported as
// a usage error on first write.
func New(opts Options) *Writer {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	w := &Writer{opts: opts}
	if opts.JQ != "" {
		if code, err := CompileJQ(opts.JQ); err == nil {
			w.jq = code
		}
	}
	return w
}

// CompileJQ parses and compiles a jq expression.
func CompileJQ(expr string) (*gojq.Code, error) {
	invalid := func(err error) error {
		return ErrUsageHint(fmt.Sprintf("invalid --jq expression: %v", err), "See https://jqlang.org/manual/")
	}
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, invalid(err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, invalid(err)
	}
	return code, nil
}

// OK outputs a success response.
func (w *Writer) OK(data any, opts ...ResponseOption) error {
	resp := &Response{OK: true, Data: data}
	for _, opt := range opts {
		opt(resp)
	}
	return w.write(resp)
}

// Err outputs an error response.
func (w *Writer) Err(err error) error {
	e := AsError(err)
	return w.write(&ErrorResponse{Error: e.Message, Code: e.Code, Hint: e.Hint, Details: e.Details})
}

// resolvedFormat turns FormatAuto into Styled on a terminal and JSON
// everywhere else.
func (w *Writer) resolvedFormat() Format {
	if w.opts.Format != FormatAuto {
		return w.opts.Format
	}
	if _, tty := terminalInfo(w.opts.Writer); tty {
		return FormatStyled
	}
	return FormatJSON
}

func (w *Writer) write(v any) error {
	// --jq filters successes only; errors keep their envelope.
	if _, failed := v.(*ErrorResponse); w.opts.JQ != "" && !failed {
		return w.writeJQ(v)
	}

	switch w.resolvedFormat() {
	case FormatQuiet:
		if resp, ok := v.(*Response); ok {
			v = resp.Data
		}
		return w.writeJSON(v)
	case FormatMarkdown:
		return w.render(NewMarkdownRenderer(w.opts.Writer), v)
	case FormatStyled:
		return w.render(NewRenderer(w.opts.Writer, true), v)
	default:
		return w.writeJSON(v)
	}
}

type envelopeRenderer interface {
	RenderResponse(io.Writer, *Response) error
	RenderError(io.Writer, *ErrorResponse) error
}

func (w *Writer) render(r envelopeRenderer, v any) error {
	switch env := v.(type) {
	case *Response:
		return r.RenderResponse(w.opts.Writer, env)
	case *ErrorResponse:
		return r.RenderError(w.opts.Writer, env)
	}
	return w.writeJSON(v)
}

func (w *Writer) writeJSON(v any) error {
	enc := json.NewEncoder(w.opts.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJQ runs the jq program over the full envelope. String results print
// raw, everything else prints as indented JSON, one result per line.
func (w *Writer) writeJQ(v any) error {
	code := w.jq
	if code == nil {
		var err error
		if code, err = CompileJQ(w.opts.JQ); err != nil {
			return err
		}
	}

	input, err := toJQInput(v)
	if err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := result.(error); isErr {
			if halt, ok := err.(*gojq.HaltError); ok && halt.Value() == nil {
				return nil
			}
			return ErrUsage(fmt.Sprintf("--jq: %v", err))
		}
		if s, isStr := result.(string); isStr {
			if _, err := fmt.Fprintln(w.opts.Writer, s); err != nil {
				return err
			}
			continue
		}
		if err := w.writeJSON(result); err != nil {
			return err
		}
	}
}

// toJQInput converts v to the plain map/slice/float64 shapes gojq accepts.
func toJQInput(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeData reduces raw JSON and typed structs to the generic
// map/slice shapes the renderers walk. Arrays of objects become
// []map[string]any; anything that fails to convert is returned as is.
func NormalizeData(data any) any {
	var generic any
	switch d := data.(type) {
	case []map[string]any, map[string]any, []any, string, nil:
		return data
	case json.RawMessage:
		if err := json.Unmarshal(d, &generic); err != nil {
			return data
		}
	default:
		out, err := toJQInput(data)
		if err != nil {
			return data
		}
		generic = out
	}

	list, ok := generic.([]any)
	if !ok {
		return generic
	}
	if len(list) == 0 {
		return []map[string]any{}
	}
	if maps := toMapSlice(list); maps != nil {
		return maps
	}
	return list
}

// ResponseOption modifies a Response.
type ResponseOption func(*Response)

// WithSummary adds a summary to the response.
func WithSummary(s string) ResponseOption {
	return func(r *Response) { r.Summary = s }
}

// WithBreadcrumbs adds breadcrumbs to the response.
func WithBreadcrumbs(b ...Breadcrumb) ResponseOption {
	return func(r *Response) { r.Breadcrumbs = append(r.Breadcrumbs, b...) }
}

// WithMeta adds metadata to the response.
func WithMeta(key string, value any) ResponseOption {
	return func(r *Response) {
		if r.Meta == nil {
			r.Meta = make(map[string]any)
		}
		r.Meta[key] = value
	}
}
