//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package task

import (
	"os"

	"github.com/markkurossi/mpsi/retcode"
	"gopkg.in/yaml.v3"
)

// Load loads the task descriptor from the YAML file.
func Load(file string) (*Task, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, retcode.Wrap(retcode.ErrConfig, err)
	}
	return Parse(data)
}

// Parse parses the YAML task descriptor.
func Parse(data []byte) (*Task, error) {
	t := new(Task)
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, retcode.Wrap(retcode.ErrConfig, err)
	}
	if len(t.PartyName) == 0 {
		return nil, retcode.Configf("party_name not set")
	}
	t.fixup()
	return t, nil
}

// Marshal encodes the task descriptor as YAML.
func (t *Task) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}
