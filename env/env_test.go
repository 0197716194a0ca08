//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package env

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestDefaults(t *testing.T) {
	var config *Config

	if config.GetRandom() != rand.Reader {
		t.Errorf("nil config does not use crypto/rand")
	}
	if config.GetStatSecParam() != DefaultStatSecParam {
		t.Errorf("unexpected stat sec param %v", config.GetStatSecParam())
	}
	config.GetLogger().Info("discarded")

	src := bytes.NewReader(make([]byte, 16))
	config = &Config{
		Rand:         src,
		StatSecParam: 80,
	}
	if config.GetRandom() != src {
		t.Errorf("configured entropy source not used")
	}
	if config.GetStatSecParam() != 80 {
		t.Errorf("got stat sec param %v, expected 80", config.GetStatSecParam())
	}
}
