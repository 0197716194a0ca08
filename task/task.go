//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package task implements the task descriptor consumed by the PSI
// and MPC executors.
package task

import (
	"fmt"
	"sort"

	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/text/superscript"
)

// Well-known party names.
const (
	PartyClient    = "CLIENT"
	PartyServer    = "SERVER"
	AuxComputeNode = "AUX_COMPUTE_NODE"
	ProxyNode      = "PROXY_NODE"
)

// Type defines task types.
type Type string

// Task types.
const (
	PSITask   Type = "PSI_TASK"
	ACTORTask Type = "ACTOR_TASK"
)

// Language defines the task code serialization language.
type Language string

// Task languages.
const (
	LangPython Language = "PYTHON"
	LangProto  Language = "PROTO"
)

// Identity identifies a task execution. The SubTaskID is assigned at
// runtime by the sub-task negotiation and it is immutable after
// that.
type Identity struct {
	JobID     string `yaml:"job_id"`
	TaskID    string `yaml:"task_id"`
	SubTaskID string `yaml:"sub_task_id,omitempty"`
	RequestID string `yaml:"request_id,omitempty"`
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s/%s", id.JobID, id.TaskID, id.SubTaskID)
}

// Node describes a party's network identity. The party ID 0 is the
// task coordinator.
type Node struct {
	Name    string `yaml:"-"`
	PartyID int    `yaml:"party_id"`
	Address string `yaml:"address"`
}

func (n Node) String() string {
	return fmt.Sprintf("%s%s(%s)", n.Name, superscript.Itoa(n.PartyID),
		n.Address)
}

// Algorithm defines the MPC operation of statistics tasks.
type Algorithm struct {
	FunctionType string `yaml:"function_type,omitempty"`
	StatisticsOp string `yaml:"statistics_op_type,omitempty"`
	ArithmeticOp string `yaml:"arithmetic_op_type,omitempty"`
}

// Datasets maps party names to dataset IDs.
type Datasets map[string]string

// Task implements a task descriptor.
type Task struct {
	Identity        Identity            `yaml:"task_info"`
	PartyName       string              `yaml:"party_name"`
	Type            Type                `yaml:"type,omitempty"`
	Language        Language            `yaml:"language,omitempty"`
	Code            string              `yaml:"code,omitempty"`
	PartyAccessInfo map[string]Node     `yaml:"party_access_info"`
	PartyDatasets   map[string]Datasets `yaml:"party_datasets,omitempty"`
	Params          Params              `yaml:"params,omitempty"`
	AuxiliaryServer map[string]Node     `yaml:"auxiliary_server,omitempty"`
	Algorithm       Algorithm           `yaml:"algorithm,omitempty"`
}

// Self returns the access info of the local party.
func (t *Task) Self() (Node, error) {
	node, ok := t.Party(t.PartyName)
	if !ok {
		return node, retcode.Configf("invalid party: %s", t.PartyName)
	}
	return node, nil
}

// Party returns the access info of the named party.
func (t *Task) Party(name string) (Node, bool) {
	node, ok := t.PartyAccessInfo[name]
	if ok {
		node.Name = name
	}
	return node, ok
}

// IsCoordinator tests if the local party is the task coordinator.
func (t *Task) IsCoordinator() (bool, error) {
	self, err := t.Self()
	if err != nil {
		return false, err
	}
	return self.PartyID == 0, nil
}

// Auxiliary returns the named auxiliary server node.
func (t *Task) Auxiliary(name string) (Node, bool) {
	node, ok := t.AuxiliaryServer[name]
	if ok {
		node.Name = name
	}
	return node, ok
}

// Receivers returns all parties except the coordinator and the
// auxiliary compute node, sorted by party ID.
func (t *Task) Receivers() []Node {
	var result []Node
	for name, node := range t.PartyAccessInfo {
		if name == AuxComputeNode || node.PartyID == 0 {
			continue
		}
		node.Name = name
		result = append(result, node)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PartyID < result[j].PartyID
	})
	return result
}

// Clone creates a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.PartyAccessInfo = cloneNodes(t.PartyAccessInfo)
	c.AuxiliaryServer = cloneNodes(t.AuxiliaryServer)
	if t.PartyDatasets != nil {
		c.PartyDatasets = make(map[string]Datasets, len(t.PartyDatasets))
		for party, datasets := range t.PartyDatasets {
			m := make(Datasets, len(datasets))
			for k, v := range datasets {
				m[k] = v
			}
			c.PartyDatasets[party] = m
		}
	}
	if t.Params != nil {
		c.Params = make(Params, len(t.Params))
		for k, v := range t.Params {
			c.Params[k] = v.clone()
		}
	}
	return &c
}

func cloneNodes(nodes map[string]Node) map[string]Node {
	if nodes == nil {
		return nil
	}
	result := make(map[string]Node, len(nodes))
	for k, v := range nodes {
		result[k] = v
	}
	return result
}

// fixup sets node names from their map keys.
func (t *Task) fixup() {
	for _, nodes := range []map[string]Node{
		t.PartyAccessInfo, t.AuxiliaryServer,
	} {
		for name, node := range nodes {
			node.Name = name
			nodes[name] = node
		}
	}
}
