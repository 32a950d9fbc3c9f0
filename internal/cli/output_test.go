package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestOutput_Table(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{w: &buf, errW: &bytes.Buffer{}}

	o.Table(
		[]string{"ID", "STATUS"},
		[][]string{
			{"d1", "success"},
			{"d2", "failed"},
		},
	)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (header, separator, 2 rows), got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("unexpected header line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "--") {
		t.Errorf("unexpected separator line: %q", lines[1])
	}
	if !strings.Contains(lines[3], "failed") {
		t.Errorf("unexpected row: %q", lines[3])
	}
}

func TestOutput_PrintJSONMode(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{jsonMode: true, w: &buf, errW: &bytes.Buffer{}}

	o.Print([]string{"ID"}, [][]string{{"d1"}}, map[string]string{"id": "d1"})

	if !strings.Contains(buf.String(), `"id": "d1"`) {
		t.Errorf("expected JSON output, got: %q", buf.String())
	}
	if strings.Contains(buf.String(), "ID\n") {
		t.Error("table must not be printed in JSON mode")
	}
}

func TestOrDash(t *testing.T) {
	if got := orDash(""); got != "-" {
		t.Errorf("orDash(\"\") = %q, want -", got)
	}
	if got := orDash("503"); got != "503" {
		t.Errorf("orDash(503) = %q, want 503", got)
	}
}
