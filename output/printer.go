package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	bisonerrors "github.com/randalmurphal/emailbison/errors"
)

// maxCell caps the width of a human table cell.
const maxCell = 60

// maxInferredColumns caps the columns picked when a caller gives none.
const maxInferredColumns = 8

// preferredColumns lead inferred tables in this order.
var preferredColumns = []string{"id", "uuid", "name", "email", "status", "type"}

// Printer writes results to out and messages to errOut.
type Printer struct {
	out     io.Writer
	errOut  io.Writer
	format  Format
	secrets []string
	title   cases.Caser
	color   bool
}

// New creates a printer. Every rendered string has secrets redacted.
func New(out, errOut io.Writer, format Format, secrets ...string) *Printer {
	if format == "" {
		format = FormatHuman
	}
	return &Printer{
		out:     out,
		errOut:  errOut,
		format:  format,
		secrets: secrets,
		title:   cases.Title(language.English),
		color:   !color.NoColor,
	}
}

// DisableColor turns off ANSI colors on stderr messages.
func (p *Printer) DisableColor() {
	p.color = false
}

// AddSecret registers another value to redact.
func (p *Printer) AddSecret(secret string) {
	if secret != "" {
		p.secrets = append(p.secrets, secret)
	}
}

// Format returns the output format.
func (p *Printer) Format() Format {
	return p.format
}

// Print renders v. Structured formats encode v as-is; the human format
// renders list responses as tables and objects as key/value listings.
func (p *Printer) Print(v any) error {
	var buf bytes.Buffer
	if err := p.render(&buf, v); err != nil {
		return err
	}
	return p.write(p.out, buf.String())
}

func (p *Printer) render(w io.Writer, v any) error {
	switch p.format {
	case FormatJSON:
		return encodeJSON(w, v)
	case FormatYAML:
		return encodeYAML(w, v)
	}

	generic, err := normalize(v)
	if err != nil {
		return err
	}
	switch val := generic.(type) {
	case map[string]any:
		return p.renderObject(w, val)
	case []any:
		rows := objects(val)
		if len(rows) == len(val) {
			return p.renderTable(w, nil, rows)
		}
		for _, item := range val {
			fmt.Fprintln(w, formatValue(item, 0))
		}
		return nil
	default:
		fmt.Fprintln(w, formatValue(val, 0))
		return nil
	}
}

// renderObject handles the {"data": ..., "meta": ...} envelope EmailBison
// uses before falling back to a key/value listing.
func (p *Printer) renderObject(w io.Writer, obj map[string]any) error {
	switch data := obj["data"].(type) {
	case []any:
		rows := objects(data)
		if len(rows) == len(data) {
			if err := p.renderTable(w, nil, rows); err != nil {
				return err
			}
			if meta, ok := obj["meta"].(map[string]any); ok {
				if line := pageLine(meta); line != "" {
					fmt.Fprintln(w, line)
				}
			}
			return nil
		}
	case map[string]any:
		if len(obj) == 1 {
			return p.renderKeyValues(w, data)
		}
	}
	return p.renderKeyValues(w, obj)
}

// Table renders rows with the given columns. Structured formats encode the
// rows unchanged. Nil columns are inferred from the rows.
func (p *Printer) Table(columns []string, rows []map[string]any) error {
	if p.format.Structured() {
		if rows == nil {
			rows = []map[string]any{}
		}
		return p.Print(rows)
	}
	var buf bytes.Buffer
	if err := p.renderTable(&buf, columns, rows); err != nil {
		return err
	}
	return p.write(p.out, buf.String())
}

func (p *Printer) renderTable(w io.Writer, columns []string, rows []map[string]any) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	if len(columns) == 0 {
		columns = inferColumns(rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(columns))
	for i, c := range columns {
		headers[i] = p.header(c)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = formatValue(row[c], maxCell)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// KeyValues renders an object as aligned "key: value" lines sorted by key.
func (p *Printer) KeyValues(obj map[string]any) error {
	if p.format.Structured() {
		return p.Print(obj)
	}
	var buf bytes.Buffer
	if err := p.renderKeyValues(&buf, obj); err != nil {
		return err
	}
	return p.write(p.out, buf.String())
}

func (p *Printer) renderKeyValues(w io.Writer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s:\t%s\n", k, formatValue(obj[k], 0))
	}
	return tw.Flush()
}

func (p *Printer) header(column string) string {
	return p.title.String(strings.ReplaceAll(column, "_", " "))
}

// Success writes a confirmation to stderr.
func (p *Printer) Success(format string, args ...any) {
	p.message(color.FgGreen, "", fmt.Sprintf(format, args...))
}

// Warn writes a warning to stderr.
func (p *Printer) Warn(format string, args ...any) {
	p.message(color.FgYellow, "Warning: ", fmt.Sprintf(format, args...))
}

func (p *Printer) message(attr color.Attribute, prefix, msg string) {
	if prefix != "" {
		prefix = p.paint(attr, prefix)
	}
	_ = p.write(p.errOut, prefix+msg+"\n")
}

func (p *Printer) paint(attr color.Attribute, s string) string {
	if !p.color {
		return s
	}
	c := color.New(attr, color.Bold)
	c.EnableColor()
	return c.Sprint(s)
}

// write sends s to w with every secret redacted.
func (p *Printer) write(w io.Writer, s string) error {
	_, err := io.WriteString(w, bisonerrors.Sanitize(s, p.secrets...))
	return err
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func encodeYAML(w io.Writer, v any) error {
	generic, err := normalize(v)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

// normalize converts v to plain maps, slices and scalars through its JSON
// form so struct tags and masking marshalers apply the same way to every
// format.
func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, map[string]any, []any, string, float64, bool:
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, bisonerrors.Wrap(bisonerrors.KindUnexpected, err, "cannot render output")
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, bisonerrors.Wrap(bisonerrors.KindUnexpected, err, "cannot render output")
	}
	return out, nil
}

func objects(items []any) []map[string]any {
	rows := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if obj, ok := it.(map[string]any); ok {
			rows = append(rows, obj)
		}
	}
	return rows
}

// inferColumns picks scalar columns present in rows, preferred names first.
func inferColumns(rows []map[string]any) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for k, v := range row {
			switch v.(type) {
			case map[string]any, []any:
				continue
			}
			seen[k] = true
		}
	}

	var columns []string
	for _, c := range preferredColumns {
		if seen[c] {
			columns = append(columns, c)
			delete(seen, c)
		}
	}
	rest := make([]string, 0, len(seen))
	for k := range seen {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	columns = append(columns, rest...)

	if len(columns) > maxInferredColumns {
		columns = columns[:maxInferredColumns]
	}
	return columns
}

func pageLine(meta map[string]any) string {
	current, _ := meta["current_page"].(float64)
	last, _ := meta["last_page"].(float64)
	if last == 0 {
		return ""
	}
	line := fmt.Sprintf("Page %d of %d", int(current), int(last))
	if total, ok := meta["total"].(float64); ok {
		line += fmt.Sprintf(" (%d total)", int(total))
	}
	return line
}

// formatValue renders one cell. width > 0 truncates the result.
func formatValue(v any, width int) string {
	var s string
	switch val := v.(type) {
	case nil:
		s = "-"
	case string:
		s = val
	case bool:
		s = strconv.FormatBool(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			s = strconv.FormatInt(int64(val), 10)
		} else {
			s = strconv.FormatFloat(val, 'f', -1, 64)
		}
	case int:
		s = strconv.Itoa(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprint(val)
		} else {
			s = string(data)
		}
	}
	s = strings.ReplaceAll(s, "\n", " ")
	if width > 0 && len([]rune(s)) > width {
		s = string([]rune(s)[:width-1]) + "…"
	}
	return s
}
