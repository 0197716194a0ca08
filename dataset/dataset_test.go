//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package dataset

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/markkurossi/mpsi/retcode"
)

const testCSV = `id,name,age
1,alice,30
2,bob,41
3,carol,27
`

func elements(values [][]byte) []string {
	var result []string
	for _, v := range values {
		result = append(result, string(v))
	}
	return result
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReadCSV(t *testing.T) {
	tests := []struct {
		columns  []int
		names    []string
		elements []string
	}{
		{
			columns:  []int{0},
			names:    []string{"id"},
			elements: []string{"1", "2", "3"},
		},
		{
			columns:  []int{1, 2},
			names:    []string{"name", "age"},
			elements: []string{"alice_30", "bob_41", "carol_27"},
		},
		{
			names:    []string{"id", "name", "age"},
			elements: []string{"1_alice_30", "2_bob_41", "3_carol_27"},
		},
	}
	for idx, test := range tests {
		values, names, err := ReadCSV(context.Background(),
			strings.NewReader(testCSV), test.columns)
		if err != nil {
			t.Fatalf("test %d: ReadCSV failed: %v", idx, err)
		}
		if !equal(names, test.names) {
			t.Errorf("test %d: names %v, expected %v", idx, names, test.names)
		}
		if !equal(elements(values), test.elements) {
			t.Errorf("test %d: elements %v, expected %v",
				idx, elements(values), test.elements)
		}
	}
}

func TestReadCSVErrors(t *testing.T) {
	_, _, err := ReadCSV(context.Background(), strings.NewReader(""), nil)
	if !errors.Is(err, retcode.ErrFormat) {
		t.Errorf("empty data: expected ErrFormat, got %v", err)
	}
	_, _, err = ReadCSV(context.Background(), strings.NewReader(testCSV),
		[]int{3})
	if !errors.Is(err, retcode.ErrConfig) {
		t.Errorf("column range: expected ErrConfig, got %v", err)
	}
	_, _, err = ReadCSV(context.Background(),
		strings.NewReader("a,b\n1,2\n3\n"), nil)
	if !errors.Is(err, retcode.ErrFormat) {
		t.Errorf("short row: expected ErrFormat, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = ReadCSV(ctx, strings.NewReader(testCSV), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: expected context.Canceled, got %v", err)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, [][]byte{
		[]byte("alice_30"),
		[]byte("bob_41"),
	}, []string{"name", "age"})
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	expected := "name,age\nalice,30\nbob,41\n"
	if buf.String() != expected {
		t.Errorf("WriteCSV: got %q, expected %q", buf.String(), expected)
	}

	buf.Reset()
	err = WriteCSV(&buf, [][]byte{[]byte("a,b")}, []string{"id"})
	if err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	expected = "id\n\"a,b\"\n"
	if buf.String() != expected {
		t.Errorf("WriteCSV: got %q, expected %q", buf.String(), expected)
	}
}

func TestCSVFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.csv")
	if err := os.WriteFile(input, []byte(testCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewService()
	if err := svc.Open("ds", Spec{Driver: "csv", Path: input}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	values, names, err := svc.Load(context.Background(), "ds", []int{1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	output := filepath.Join(dir, "out", "result.csv")
	sink := &CSVSink{}
	if err := sink.Save(values[1:], output, names); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "name\nbob\ncarol\n" {
		t.Errorf("unexpected output %q", data)
	}
	if err := sink.Save(values, "", names); !errors.Is(err, retcode.ErrConfig) {
		t.Errorf("empty path: expected ErrConfig, got %v", err)
	}
}

func TestService(t *testing.T) {
	svc := NewService()
	_, _, err := svc.Load(context.Background(), "missing", nil)
	if !errors.Is(err, retcode.ErrConfig) {
		t.Errorf("missing dataset: expected ErrConfig, got %v", err)
	}
	for _, spec := range []Spec{
		{Driver: "csv"},
		{Driver: "postgres", DSN: "postgres://localhost/db"},
		{Driver: "xlsx", Path: "data.xlsx"},
	} {
		if err := svc.Open("ds", spec); !errors.Is(err, retcode.ErrConfig) {
			t.Errorf("Open(%v): expected ErrConfig, got %v", spec, err)
		}
	}
	_, _, err = (&CSVDriver{Path: filepath.Join(t.TempDir(), "none.csv")}).
		Load(context.Background(), "ds", nil)
	if !errors.Is(err, retcode.ErrConfig) {
		t.Errorf("missing file: expected ErrConfig, got %v", err)
	}
}

func TestMemory(t *testing.T) {
	mem := NewMemory()
	mem.Add("ds", &Table{
		Columns: []string{"id", "email"},
		Rows: [][]string{
			{"1", "a@example.com"},
			{"2", "b@example.com"},
		},
	})
	svc := NewService()
	svc.Register("ds", mem)

	values, names, err := svc.Load(context.Background(), "ds", []int{1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !equal(names, []string{"email"}) {
		t.Errorf("names: %v", names)
	}
	if !equal(elements(values), []string{"a@example.com", "b@example.com"}) {
		t.Errorf("elements: %v", elements(values))
	}
	if _, _, err := mem.Load(context.Background(), "other", nil); err == nil {
		t.Errorf("unknown dataset loaded")
	}

	if err := mem.Save(values[:1], "out", names); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	values[0][0] = 'x'
	r, ok := mem.Result("out")
	if !ok {
		t.Fatalf("result not saved")
	}
	if !equal(elements(r.Rows), []string{"a@example.com"}) {
		t.Errorf("saved rows: %v", elements(r.Rows))
	}
}
