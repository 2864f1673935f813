// Package models holds the persisted entities of pipeline-hub.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"pipeline-hub/internal/nodes"
)

// Position is a node's location on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PipelineNode is one step of a pipeline graph.
type PipelineNode struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Summary  string       `json:"summary"`
	Position Position     `json:"position"`
	Inputs   []string     `json:"inputs"`
	Outputs  []string     `json:"outputs"`
	Config   nodes.Config `json:"config"`
}

// UnmarshalJSON decodes the node and builds its config variant from the
// type tag, so that omitted config fields take their defaults.
func (n *PipelineNode) UnmarshalJSON(data []byte) error {
	type plain PipelineNode
	var raw struct {
		plain
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cfg, err := nodes.New(raw.Type, raw.Config)
	if err != nil {
		return err
	}
	*n = PipelineNode(raw.plain)
	n.Config = cfg
	return nil
}

// HasInput reports whether port is a declared input of the node.
func (n *PipelineNode) HasInput(port string) bool {
	return containsPort(n.Inputs, port)
}

// HasOutput reports whether port is a declared output of the node.
func (n *PipelineNode) HasOutput(port string) bool {
	return containsPort(n.Outputs, port)
}

func containsPort(ports []string, port string) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}

// Pipe is a directed edge from a source node's output port to a target
// node's input port.
type Pipe struct {
	ID         string `json:"id"`
	SourceID   string `json:"sourceId"`
	SourceSide string `json:"sourceSide"`
	TargetID   string `json:"targetId"`
	TargetSide string `json:"targetSide"`
}

// Trigger is the event source that starts a pipeline.
type Trigger struct {
	Type   string              `json:"type"`
	Config nodes.TriggerConfig `json:"config"`
}

// UnmarshalJSON decodes the trigger and builds its config from the type tag.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   string          `json:"type"`
		Config json.RawMessage `json:"config"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cfg, err := nodes.NewTrigger(raw.Type, raw.Config)
	if err != nil {
		return err
	}
	t.Type = raw.Type
	t.Config = cfg
	return nil
}

// Definition is the graph snapshot stored with a pipeline.
type Definition struct {
	Trigger *Trigger       `json:"trigger"`
	Nodes   []PipelineNode `json:"nodes"`
	Pipes   []Pipe         `json:"pipes"`
}

// Copy returns a deep copy of the definition.
func (d Definition) Copy() (Definition, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to encode definition: %w", err)
	}
	var out Definition
	if err := json.Unmarshal(data, &out); err != nil {
		return Definition{}, fmt.Errorf("failed to decode definition: %w", err)
	}
	return out, nil
}

// Node returns the node with the given id, or nil.
func (d *Definition) Node(id string) *PipelineNode {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}

// Pipeline is a user's automation graph.
type Pipeline struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Title      string     `json:"title"`
	Summary    string     `json:"summary"`
	Definition Definition `json:"definition"`
	IsPublic   bool       `json:"isPublic"`
	ShareToken *string    `json:"shareToken,omitempty"`
	ClonedFrom *string    `json:"clonedFrom,omitempty"`
	CloneCount int        `json:"cloneCount"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// TriggerType returns the pipeline's trigger type, or "" when unset.
func (p *Pipeline) TriggerType() string {
	if p.Definition.Trigger == nil {
		return ""
	}
	return p.Definition.Trigger.Type
}
