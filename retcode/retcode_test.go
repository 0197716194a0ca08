//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package retcode

import (
	"errors"
	"io"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		code Code
	}{
		{nil, Success},
		{io.EOF, Failure},
		{Configf("missing %s", "psiType"), ConfigFailure},
		{Networkf("recv: %v", io.ErrUnexpectedEOF), NetworkFailure},
		{Protocolf("sync flag mismatch"), ProtocolFailure},
		{Formatf("truncated"), FormatFailure},
		{Wrap(ErrProtocol, io.EOF), ProtocolFailure},
	}
	for idx, test := range tests {
		code := CodeOf(test.err)
		if code != test.code {
			t.Errorf("test %d: got %v, expected %v", idx, code, test.code)
		}
	}
}

func TestWrapKeepsFirstKind(t *testing.T) {
	err := Wrap(ErrProtocol, Networkf("channel closed"))
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("expected network error, got %v", err)
	}
	if errors.Is(err, ErrProtocol) {
		t.Errorf("unexpected protocol classification: %v", err)
	}
	if Wrap(ErrConfig, nil) != nil {
		t.Errorf("Wrap(nil) returned non-nil")
	}
	err = Wrap(ErrFormat, io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) || !errors.Is(err, ErrFormat) {
		t.Errorf("Wrap lost error chain: %v", err)
	}
}
