package render

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"table", FormatTable, false},
		{"Yaml", FormatYAML, false},
		{"", "", false},
		{"xml", "", true},
		{"csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if err != nil && !strings.Contains(err.Error(), "json, table, or yaml") {
				t.Errorf("error should list valid formats: %v", err)
			}
		})
	}
}

type entry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type listing []entry

func (l listing) Header() []string { return []string{"NAME", "SIZE"} }

func (l listing) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		rows = append(rows, []string{e.Name, strings.Repeat("#", int(e.Size))})
	}
	return rows
}

func TestRenderer_JSONAndYAML(t *testing.T) {
	data := entry{Name: "log.bin", Size: 3}

	var js bytes.Buffer
	if err := NewRendererWithWriter(FormatJSON, false, &js).Render(data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js.String(), `"name": "log.bin"`) {
		t.Errorf("json = %s", js.String())
	}

	var ym bytes.Buffer
	if err := NewRendererWithWriter(FormatYAML, false, &ym).Render(map[string]int{"acks": 4}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(ym.String()) != "acks: 4" {
		t.Errorf("yaml = %q", ym.String())
	}
}

func TestRenderer_TableInterface(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	if err := r.Render(listing{{"a.txt", 1}, {"longer-name.bin", 2}}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[0], "SIZE") {
		t.Errorf("header = %q", lines[0])
	}
	// Columns are aligned by tabwriter.
	if strings.Index(lines[1], "#") != strings.Index(lines[2], "#") {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}

func TestRenderer_TableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewRendererWithWriter(FormatTable, false, &buf).Render(listing{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("got %q", buf.String())
	}
}

func TestRenderer_TableKeyValue(t *testing.T) {
	type status struct {
		Root     string           `json:"root"`
		Hidden   string           `json:"-"`
		Requests map[string]int64 `json:"requests"`
		Started  time.Time        `json:"started"`
		internal int
	}
	started := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)
	err := r.Render(&status{
		Root:     "/srv",
		Hidden:   "secret",
		Requests: map[string]int64{"read_file": 2, "list_directory": 1},
		Started:  started,
		internal: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	got := buf.String()
	for _, want := range []string{"root:", "/srv", "list_directory=1 read_file=2", "2026-10-17 12:00:00"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "secret") || strings.Contains(got, "internal") {
		t.Errorf("hidden fields rendered:\n%s", got)
	}
}

func TestRenderer_NoColorDoesNotAffectJSON(t *testing.T) {
	var a, b bytes.Buffer
	data := map[string]string{"key": "value"}

	if err := NewRendererWithWriter(FormatJSON, false, &a).Render(data); err != nil {
		t.Fatal(err)
	}
	if err := NewRendererWithWriter(FormatJSON, true, &b).Render(data); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Error("--no-color changed JSON output")
	}
}

func TestRenderer_TUIUnsupportedView(t *testing.T) {
	r := NewRendererWithWriter(FormatJSON, false, &bytes.Buffer{})
	if err := r.RenderTUI("ls", nil); err == nil {
		t.Error("expected error for unsupported view")
	}
}
