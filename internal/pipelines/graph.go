package pipelines

import (
	"context"
	"fmt"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/nodes"
)

// Report lists configuration problems per node. A pipeline with problems
// can still be saved; the report tells the editor what to fix before it
// can run.
type Report struct {
	Valid   bool                `json:"valid"`
	Trigger []string            `json:"trigger,omitempty"`
	Nodes   map[string][]string `json:"nodes"`
}

// Validate checks the trigger and every node configuration of a pipeline.
func (s *Service) Validate(ctx context.Context, id, userID string) (*Report, error) {
	p, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return Check(&p.Definition), nil
}

// Check builds the configuration report for a definition.
func Check(def *models.Definition) *Report {
	report := &Report{Nodes: map[string][]string{}}
	if def.Trigger != nil && def.Trigger.Config != nil {
		report.Trigger = def.Trigger.Config.Validate()
	}
	for _, n := range def.Nodes {
		if n.Config == nil {
			continue
		}
		if problems := n.Config.Validate(); len(problems) > 0 {
			report.Nodes[n.ID] = problems
		}
	}
	report.Valid = len(report.Trigger) == 0 && len(report.Nodes) == 0
	return report
}

// prepareDefinition fills defaults, refreshes node summaries and rejects
// graphs whose structure is broken.
func prepareDefinition(def *models.Definition) error {
	var problems []string

	switch {
	case def.Trigger == nil || def.Trigger.Type == "":
		problems = append(problems, "trigger is required")
	case !nodes.IsKnownTrigger(def.Trigger.Type):
		problems = append(problems, fmt.Sprintf("unknown trigger type %q", def.Trigger.Type))
	case def.Trigger.Config == nil:
		cfg, _ := nodes.NewTrigger(def.Trigger.Type, nil)
		def.Trigger.Config = cfg
	}

	if def.Nodes == nil {
		def.Nodes = []models.PipelineNode{}
	}
	if def.Pipes == nil {
		def.Pipes = []models.Pipe{}
	}

	seenNodes := make(map[string]bool, len(def.Nodes))
	for i := range def.Nodes {
		n := &def.Nodes[i]
		switch {
		case n.ID == "":
			problems = append(problems, fmt.Sprintf("node %d has no id", i))
			continue
		case seenNodes[n.ID]:
			problems = append(problems, fmt.Sprintf("duplicate node id %q", n.ID))
			continue
		}
		seenNodes[n.ID] = true

		if !nodes.IsKnown(n.Type) {
			problems = append(problems, fmt.Sprintf("node %q has unknown type %q", n.ID, n.Type))
			continue
		}
		if n.Config == nil {
			n.Config, _ = nodes.Default(n.Type)
		}
		inputs, outputs := nodes.Ports(n.Type)
		if n.Inputs == nil {
			n.Inputs = inputs
		}
		if n.Outputs == nil {
			n.Outputs = outputs
		}
		n.Summary = n.Config.Summary()
	}

	seenPipes := make(map[string]bool, len(def.Pipes))
	for i, pipe := range def.Pipes {
		if pipe.ID == "" {
			problems = append(problems, fmt.Sprintf("pipe %d has no id", i))
		} else if seenPipes[pipe.ID] {
			problems = append(problems, fmt.Sprintf("duplicate pipe id %q", pipe.ID))
		}
		seenPipes[pipe.ID] = true

		source := def.Node(pipe.SourceID)
		target := def.Node(pipe.TargetID)
		if source == nil {
			problems = append(problems, fmt.Sprintf("pipe %q references missing source node %q", pipe.ID, pipe.SourceID))
		} else if !source.HasOutput(pipe.SourceSide) {
			problems = append(problems, fmt.Sprintf("pipe %q uses undeclared output %q of node %q", pipe.ID, pipe.SourceSide, pipe.SourceID))
		}
		if target == nil {
			problems = append(problems, fmt.Sprintf("pipe %q references missing target node %q", pipe.ID, pipe.TargetID))
		} else if !target.HasInput(pipe.TargetSide) {
			problems = append(problems, fmt.Sprintf("pipe %q uses undeclared input %q of node %q", pipe.ID, pipe.TargetSide, pipe.TargetID))
		}
	}

	if len(problems) > 0 {
		return errors.ValidationErrors("invalid pipeline graph", problems)
	}
	return nil
}
