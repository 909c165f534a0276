package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/charmbracelet/x/term"

	"github.com/lucifergaming/savagetech/internal/observability"
	"github.com/lucifergaming/savagetech/internal/tui"
)

// Renderer handles styled terminal output.
type Renderer struct {
	width  int
	styled bool

	Summary lipgloss.Style
	Muted   lipgloss.Style
	Data    lipgloss.Style
	Error   lipgloss.Style
	Hint    lipgloss.Style
	Success lipgloss.Style

	Header lipgloss.Style
	Cell   lipgloss.Style
}

// NewRenderer creates a renderer with styles from the resolved theme.
// Styling is enabled when writing to a TTY, or when forceStyled is true.
func NewRenderer(w io.Writer, forceStyled bool) *Renderer {
	return NewRendererWithTheme(w, forceStyled, tui.ResolveTheme())
}

// NewRendererWithTheme creates a renderer with a specific theme (for testing).
func NewRendererWithTheme(w io.Writer, forceStyled bool, theme tui.Theme) *Renderer {
	width, isTTY := terminalInfo(w)
	r := &Renderer{
		width:  width,
		styled: isTTY || forceStyled,
	}

	plain := lipgloss.NewStyle()
	if !r.styled {
		r.Summary, r.Muted, r.Data, r.Error, r.Hint, r.Success = plain, plain, plain, plain, plain, plain
		r.Header, r.Cell = plain, plain
		return r
	}

	fg := tui.Color(theme.Foreground)
	muted := tui.Color(theme.Muted)
	r.Summary = plain.Foreground(tui.Color(theme.Primary)).Bold(true)
	r.Muted = plain.Foreground(muted)
	r.Data = plain.Foreground(fg)
	r.Error = plain.Foreground(tui.Color(theme.Error)).Bold(true)
	r.Hint = plain.Foreground(muted).Italic(true)
	r.Success = plain.Foreground(tui.Color(theme.Success))
	r.Header = plain.Foreground(fg).Bold(true)
	r.Cell = plain.Foreground(fg)
	return r
}

// terminalInfo returns the terminal width and whether the writer is a TTY.
func terminalInfo(w io.Writer) (width int, isTTY bool) {
	width = 80

	if f, ok := w.(*os.File); ok {
		if w, _, err := term.GetSize(f.Fd()); err == nil && w >= 40 {
			width = w
		}
		isTTY = term.IsTerminal(f.Fd())
	}

	return width, isTTY
}

// RenderResponse renders a success response to the writer.
func (r *Renderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString(r.Summary.Render(resp.Summary))
		b.WriteString("\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n")
		b.WriteString(r.Muted.Render("Next:"))
		b.WriteString("\n")
		for _, bc := range resp.Breadcrumbs {
			line := r.Muted.Render("  " + bc.Cmd)
			if bc.Description != "" {
				line += r.Muted.Render("  # " + bc.Description)
			}
			b.WriteString(line + "\n")
		}
	}

	if parts := statsParts(resp.Meta); len(parts) > 0 {
		b.WriteString("\n")
		b.WriteString(r.Muted.Render("Stats: " + strings.Join(parts, " | ")))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response to the writer.
func (r *Renderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString(r.Error.Render("Error: " + resp.Error))
	b.WriteString("\n")

	if resp.Hint != "" {
		b.WriteString(r.Hint.Render("Hint: " + resp.Hint))
		b.WriteString("\n")
	}
	if details, ok := resp.Details.(map[string]any); ok && len(details) > 0 {
		r.renderObject(&b, details)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		r.renderTable(b, d)

	case map[string]any:
		r.renderObject(b, d)

	case []any:
		if len(d) == 0 {
			b.WriteString(r.Muted.Render("(no results)"))
			b.WriteString("\n")
			return
		}
		for _, item := range d {
			b.WriteString(r.Data.Render("• " + formatCell(item)))
			b.WriteString("\n")
		}

	case string:
		b.WriteString(r.Data.Render(d))
		b.WriteString("\n")

	case nil:
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")

	default:
		b.WriteString(r.Data.Render(fmt.Sprintf("%v", data)))
		b.WriteString("\n")
	}
}

func (r *Renderer) renderTable(b *strings.Builder, data []map[string]any) {
	keys := columnKeys(data)
	if len(keys) == 0 {
		return
	}

	headers := make([]string, len(keys))
	for i, k := range keys {
		headers[i] = formatHeader(k)
	}

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Width(r.width).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.Header
			}
			return r.Cell
		}).
		Headers(headers...)

	for _, item := range data {
		row := make([]string, len(keys))
		for i, k := range keys {
			row[i] = formatCell(item[k])
		}
		t.Row(row...)
	}

	b.WriteString(t.String())
	b.WriteString("\n")
}

func (r *Renderer) renderObject(b *strings.Builder, data map[string]any) {
	keys := objectKeys(data)
	if len(keys) == 0 {
		b.WriteString(r.Muted.Render("(no data)"))
		b.WriteString("\n")
		return
	}

	maxLen := 0
	for _, k := range keys {
		maxLen = max(maxLen, len(formatHeader(k)))
	}

	for _, k := range keys {
		label := r.Muted.Render(fmt.Sprintf("%-*s: ", maxLen, formatHeader(k)))
		b.WriteString(label + r.Data.Render(formatCell(data[k])) + "\n")
	}
}

// MarkdownRenderer outputs literal Markdown syntax.
type MarkdownRenderer struct {
	width int
}

// NewMarkdownRenderer creates a renderer for literal Markdown output.
func NewMarkdownRenderer(w io.Writer) *MarkdownRenderer {
	width, _ := terminalInfo(w)
	return &MarkdownRenderer{width: width}
}

// RenderResponse renders a success response as literal Markdown.
func (r *MarkdownRenderer) RenderResponse(w io.Writer, resp *Response) error {
	var b strings.Builder

	if resp.Summary != "" {
		b.WriteString("## " + resp.Summary + "\n\n")
	}

	r.renderData(&b, NormalizeData(resp.Data))

	if len(resp.Breadcrumbs) > 0 {
		b.WriteString("\n### Next\n\n")
		for _, bc := range resp.Breadcrumbs {
			line := "- `" + bc.Cmd + "`"
			if bc.Description != "" {
				line += ": " + bc.Description
			}
			b.WriteString(line + "\n")
		}
	}

	if parts := statsParts(resp.Meta); len(parts) > 0 {
		b.WriteString("\n*Stats: " + strings.Join(parts, " | ") + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderError renders an error response as literal Markdown.
func (r *MarkdownRenderer) RenderError(w io.Writer, resp *ErrorResponse) error {
	var b strings.Builder

	b.WriteString("**Error:** " + resp.Error + "\n")
	if resp.Hint != "" {
		b.WriteString("\n*Hint: " + resp.Hint + "*\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *MarkdownRenderer) renderData(b *strings.Builder, data any) {
	switch d := data.(type) {
	case []map[string]any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
			return
		}
		r.renderTable(b, d)

	case map[string]any:
		keys := objectKeys(d)
		if len(keys) == 0 {
			b.WriteString("*No data*\n")
			return
		}
		for _, k := range keys {
			b.WriteString("- **" + formatHeader(k) + ":** " + formatCell(d[k]) + "\n")
		}

	case []any:
		if len(d) == 0 {
			b.WriteString("*No results*\n")
			return
		}
		for _, item := range d {
			b.WriteString("- " + formatCell(item) + "\n")
		}

	case string:
		b.WriteString(d + "\n")

	case nil:
		b.WriteString("*No data*\n")

	default:
		fmt.Fprintf(b, "%v\n", data)
	}
}

func (r *MarkdownRenderer) renderTable(b *strings.Builder, data []map[string]any) {
	keys := columnKeys(data)
	if len(keys) == 0 {
		return
	}

	headers := make([]string, len(keys))
	seps := make([]string, len(keys))
	for i, k := range keys {
		headers[i] = formatHeader(k)
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("| " + strings.Join(seps, " | ") + " |\n")

	for _, item := range data {
		cells := make([]string, len(keys))
		for i, k := range keys {
			cells[i] = strings.ReplaceAll(formatCell(item[k]), "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

// columnPriority orders well-known fields first; everything else sorts by name.
var columnPriority = map[string]int{
	"code":      1,
	"user_id":   1,
	"userId":    1,
	"symbol":    2,
	"shortName": 3,
	"fullName":  4,
	"amount":    5,
	"odds":      6,
	"currency":  7,
	"jwt":       90,
	"pubsub":    91,
}

func sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := priority(keys[i]), priority(keys[j])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})
}

func priority(key string) int {
	if p, ok := columnPriority[key]; ok {
		return p
	}
	return 50
}

// columnKeys returns the scalar fields of the first row, ordered for display.
func columnKeys(data []map[string]any) []string {
	if len(data) == 0 {
		return nil
	}
	var keys []string
	for k, v := range data[0] {
		switch v.(type) {
		case map[string]any, []map[string]any:
			continue
		}
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

func objectKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k, v := range data {
		if _, nested := v.(map[string]any); nested {
			continue
		}
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// toMapSlice returns nil unless every element is an object.
func toMapSlice(slice []any) []map[string]any {
	if len(slice) == 0 {
		return nil
	}
	maps := make([]map[string]any, 0, len(slice))
	for _, item := range slice {
		m, ok := item.(map[string]any)
		if !ok {
			return nil
		}
		maps = append(maps, m)
	}
	return maps
}

// formatHeader turns snake_case and camelCase keys into title-cased labels.
func formatHeader(key string) string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	var prev rune
	for _, c := range key {
		switch {
		case c == '_' || c == '-' || c == ' ':
			flush()
		case c >= 'A' && c <= 'Z' && (prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9'):
			flush()
			cur.WriteRune(c)
		default:
			cur.WriteRune(c)
		}
		prev = c
	}
	flush()

	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		if len(v) > 40 {
			return v[:37] + "..."
		}
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int, int64:
		return fmt.Sprintf("%d", v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, formatCell(item))
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// statsParts pulls --stats output from response meta. Stats may be the
// collector's SessionMetrics or its Map form.
func statsParts(meta map[string]any) []string {
	if meta == nil {
		return nil
	}
	switch s := meta["stats"].(type) {
	case observability.SessionMetrics:
		return s.FormatParts()
	case *observability.SessionMetrics:
		return s.FormatParts()
	case map[string]any:
		return observability.SessionMetricsFromMap(s).FormatParts()
	}
	return nil
}
