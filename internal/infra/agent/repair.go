package agent

import (
	"github.com/kaptinlin/jsonrepair"

	"github.com/yanqian/ai-helloworld/internal/domain/agent"
)

// JSONRepair adapts github.com/kaptinlin/jsonrepair to agent.JSONRepairer.
type JSONRepair struct{}

// NewJSONRepair constructs a JSONRepair.
func NewJSONRepair() JSONRepair { return JSONRepair{} }

func (JSONRepair) Repair(malformed string) (string, error) {
	return jsonrepair.JSONRepair(malformed)
}

var _ agent.JSONRepairer = JSONRepair{}
