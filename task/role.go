//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package task

import (
	"fmt"

	"github.com/markkurossi/mpsi/retcode"
)

// Role defines the party role in a two-party PSI exchange.
type Role int

// PSI roles.
const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "Client"
	case RoleServer:
		return "Server"
	default:
		return fmt.Sprintf("{Role %d}", int(r))
	}
}

// PeerBinding binds the local PSI role to its single peer.
type PeerBinding struct {
	Role      Role
	DatasetID string
	PeerName  string
	Peer      Node
}

// ResolvePeer resolves the local party's role, dataset, and its PSI
// peer from the task descriptor.
func ResolvePeer(t *Task) (*PeerBinding, error) {
	datasets, ok := t.PartyDatasets[t.PartyName]
	if !ok {
		return nil, retcode.Configf("no dataset is found for party_name: %s",
			t.PartyName)
	}
	datasetID, ok := datasets[t.PartyName]
	if !ok {
		return nil, retcode.Configf("no dataset is found for party_name: %s",
			t.PartyName)
	}

	binding := &PeerBinding{
		DatasetID: datasetID,
	}
	if t.PartyName == PartyClient {
		binding.Role = RoleClient
		binding.PeerName = PartyServer
	} else {
		binding.Role = RoleServer
		binding.PeerName = PartyClient
	}

	peer, ok := t.Party(binding.PeerName)
	if !ok {
		return nil, retcode.Configf(
			"get peer node access info failed for party: %s", t.PartyName)
	}
	binding.Peer = peer

	return binding, nil
}
