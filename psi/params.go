//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package psi

import (
	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
)

// Task parameter keys.
const (
	KeyPSIType          = "psiType"
	KeyOutputPath       = "outputFullFilename"
	KeyClientIndex      = "clientIndex"
	KeyServerIndex      = "serverIndex"
	KeySyncResult       = "sync_result_to_server"
	KeyServerOutputPath = "server_outputFullFilname"
)

// Params define the PSI task parameters of one party.
type Params struct {
	Mode             Mode
	OutputPath       string
	Columns          []int
	SyncResult       bool
	ServerOutputPath string
}

// LoadParams loads the PSI parameters for the role from the task
// parameters. The client reads its selection mode, output path, and
// clientIndex columns; the server reads its serverIndex columns. Both
// read the server result sync settings.
func LoadParams(params task.Params, role task.Role) (*Params, error) {
	result := new(Params)

	indexKey := KeyServerIndex
	if role == task.RoleClient {
		indexKey = KeyClientIndex

		mode, ok, err := params.Int32(KeyPSIType)
		if err != nil {
			return nil, err
		}
		if ok {
			switch Mode(mode) {
			case Intersection, Difference:
				result.Mode = Mode(mode)
			default:
				return nil, retcode.Configf("invalid %s: %d", KeyPSIType, mode)
			}
		}
		path, ok, err := params.Text(KeyOutputPath)
		if err != nil {
			return nil, err
		}
		if !ok || len(path) == 0 {
			return nil, retcode.Configf("no %s", KeyOutputPath)
		}
		result.OutputPath = path
	}

	columns, _, err := params.Int32s(indexKey)
	if err != nil {
		return nil, err
	}
	for _, col := range columns {
		if col < 0 {
			return nil, retcode.Configf("invalid %s: %d", indexKey, col)
		}
		result.Columns = append(result.Columns, int(col))
	}

	sync, _, err := params.Int32(KeySyncResult)
	if err != nil {
		return nil, err
	}
	result.SyncResult = sync > 0

	path, _, err := params.Text(KeyServerOutputPath)
	if err != nil {
		return nil, err
	}
	result.ServerOutputPath = path

	if result.SyncResult && role == task.RoleServer &&
		len(result.ServerOutputPath) == 0 {
		return nil, retcode.Configf("%s set without %s",
			KeySyncResult, KeyServerOutputPath)
	}

	return result, nil
}
