//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package psi

import (
	"testing"

	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
)

func strs(values ...string) [][]byte {
	var result [][]byte
	for _, v := range values {
		result = append(result, []byte(v))
	}
	return result
}

func equal(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if string(a[i]) != string(b[i]) {
			return false
		}
	}
	return true
}

func TestSelect(t *testing.T) {
	elements := strs("a", "b", "c", "d")

	tests := []struct {
		positions []int
		mode      Mode
		expected  [][]byte
	}{
		{[]int{2, 1}, Intersection, strs("b", "c")},
		{[]int{2, 1}, Difference, strs("a", "d")},
		{[]int{1, 1, 1}, Intersection, strs("b")},
		{[]int{7, -1}, Intersection, strs()},
		{nil, Intersection, strs()},
		{nil, Difference, elements},
		{[]int{0, 1, 2, 3}, Difference, strs()},
	}
	for idx, test := range tests {
		got := Select(elements, test.positions, test.mode)
		if !equal(got, test.expected) {
			t.Errorf("test %d: %v%v: got %q, expected %q",
				idx, test.mode, test.positions, got, test.expected)
		}
	}
}

func TestHashElement(t *testing.T) {
	a := HashElement([]byte("a"))
	if !a.Equal(HashElement([]byte("a"))) {
		t.Errorf("HashElement is not deterministic")
	}
	if a.Equal(HashElement([]byte("b"))) {
		t.Errorf("HashElement collision")
	}
	if HashElement(nil).Equal(HashElement([]byte{0})) {
		t.Errorf("empty element collides with zero byte")
	}
}

func TestLoadParams(t *testing.T) {
	params := task.Params{
		KeyPSIType:          task.NewInt32(1),
		KeyOutputPath:       task.NewString("/tmp/client.csv"),
		KeyClientIndex:      task.NewInt32Array(0, 2),
		KeyServerIndex:      task.NewInt32(1),
		KeySyncResult:       task.NewInt32(1),
		KeyServerOutputPath: task.NewString("/tmp/server.csv"),
	}

	client, err := LoadParams(params, task.RoleClient)
	if err != nil {
		t.Fatalf("LoadParams client: %v", err)
	}
	if client.Mode != Difference || client.OutputPath != "/tmp/client.csv" ||
		len(client.Columns) != 2 || client.Columns[1] != 2 ||
		!client.SyncResult {
		t.Errorf("unexpected client params: %+v", client)
	}

	server, err := LoadParams(params, task.RoleServer)
	if err != nil {
		t.Fatalf("LoadParams server: %v", err)
	}
	if len(server.Columns) != 1 || server.Columns[0] != 1 ||
		server.ServerOutputPath != "/tmp/server.csv" {
		t.Errorf("unexpected server params: %+v", server)
	}
}

func TestLoadParamsErrors(t *testing.T) {
	tests := []struct {
		params task.Params
		role   task.Role
	}{
		{
			params: task.Params{
				KeyPSIType: task.NewInt32(0),
			},
			role: task.RoleClient,
		},
		{
			params: task.Params{
				KeyPSIType:    task.NewInt32(7),
				KeyOutputPath: task.NewString("out.csv"),
			},
			role: task.RoleClient,
		},
		{
			params: task.Params{
				KeyPSIType:    task.NewString("INTERSECTION"),
				KeyOutputPath: task.NewString("out.csv"),
			},
			role: task.RoleClient,
		},
		{
			params: task.Params{
				KeyServerIndex: task.NewString("zero"),
			},
			role: task.RoleServer,
		},
		{
			params: task.Params{
				KeySyncResult: task.NewInt32(1),
			},
			role: task.RoleServer,
		},
	}
	for idx, test := range tests {
		_, err := LoadParams(test.params, test.role)
		if retcode.CodeOf(err) != retcode.ConfigFailure {
			t.Errorf("test %d: expected config error, got %v", idx, err)
		}
	}
}
