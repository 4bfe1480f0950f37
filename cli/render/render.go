// Package render formats CLI command output.
//
// Format selection:
//   - --format always wins; invalid formats are errors
//   - otherwise table when output is a terminal, json when it is not
//
// --no-color affects table headers only. TUI views use their own styling.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/justapithecus/skylink/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string. The empty string is valid and means
// "pick a default".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Table is implemented by values with a natural row layout. Other values
// render in table format as key/value pairs.
type Table interface {
	Header() []string
	Rows() [][]string
}

// Renderer writes command output in one format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from the --format and --no-color flags,
// writing to the app's Writer.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}
	if format == "" {
		format = FormatJSON
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = FormatTable
		}
	}
	return &Renderer{format: format, noColor: c.Bool("no-color"), out: out}, nil
}

// NewRendererWithWriter creates a renderer writing to out.
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Format returns the selected format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render outputs data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI runs the interactive view for viewType.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderTable(data any) error {
	var header []string
	var rows [][]string

	if t, ok := data.(Table); ok {
		header, rows = t.Header(), t.Rows()
		if len(rows) == 0 {
			_, err := fmt.Fprintln(r.out, "(no results)")
			return err
		}
	} else {
		rows = keyValueRows(reflect.ValueOf(data))
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	if header != nil {
		fmt.Fprintln(w, strings.Join(header, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	out := buf.String()
	if header != nil && !r.noColor {
		first, rest, _ := strings.Cut(out, "\n")
		style := lipgloss.NewRenderer(r.out).NewStyle().Bold(true)
		out = style.Render(first) + "\n" + rest
	}
	_, err := io.WriteString(r.out, out)
	return err
}

// keyValueRows flattens a struct or map into "key:" / value rows.
func keyValueRows(v reflect.Value) [][]string {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return [][]string{{"(none)"}}
		}
		v = v.Elem()
	}

	var rows [][]string
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			name := fieldName(f)
			if name == "" {
				continue
			}
			rows = append(rows, []string{name + ":", formatValue(v.Field(i))})
		}
	case reflect.Map:
		keys := v.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
		})
		for _, k := range keys {
			rows = append(rows, []string{fmt.Sprint(k.Interface()) + ":", formatValue(v.MapIndex(k))})
		}
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return [][]string{{"(no results)"}}
		}
		for i := range v.Len() {
			rows = append(rows, []string{formatValue(v.Index(i))})
		}
	default:
		rows = append(rows, []string{formatValue(v)})
	}
	return rows
}

// fieldName prefers the json tag name. "-" hides the field.
func fieldName(f reflect.StructField) string {
	if tag, _, _ := strings.Cut(f.Tag.Get("json"), ","); tag != "" {
		if tag == "-" {
			return ""
		}
		return tag
	}
	return strings.ToLower(f.Name)
}

func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		keys := v.MapKeys()
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%v=%v", k.Interface(), v.MapIndex(k).Interface()))
		}
		slices.Sort(parts)
		return strings.Join(parts, " ")
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}
