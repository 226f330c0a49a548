package app

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/modules/assistant/toolkit"
)

// PolicyFile is the optional YAML override for assistant policy. Unset keys
// leave the environment value in place.
type PolicyFile struct {
	Moderation struct {
		HighSeverity []string `yaml:"high_severity"`
	} `yaml:"moderation"`
	Plans struct {
		Paid []string `yaml:"paid"`
	} `yaml:"plans"`
	Roles  map[string][]string `yaml:"roles"`
	Limits struct {
		WorkspaceHourly *int `yaml:"workspace_hourly"`
		UserHourly      *int `yaml:"user_hourly"`
		MaxPromptChars  *int `yaml:"max_prompt_chars"`
	} `yaml:"limits"`
	Context struct {
		MaxTotal      *int `yaml:"max_total"`
		HistoryLimit  *int `yaml:"history_limit"`
		MessageChars  *int `yaml:"message_chars"`
		EntityLimit   *int `yaml:"entity_limit"`
		SelectedLimit *int `yaml:"selected_limit"`
		DocumentChars *int `yaml:"document_chars"`
		WebResults    *int `yaml:"web_results"`
	} `yaml:"context"`
	Billing struct {
		CostPer1K     *float64 `yaml:"cost_per_1k_tokens"`
		MinCost       *int64   `yaml:"min_request_cost"`
		EstimatedCost *int64   `yaml:"estimated_request_cost"`
	} `yaml:"billing"`
}

func LoadPolicyFile(path string) (*PolicyFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(raw)
}

func ParsePolicy(raw []byte) (*PolicyFile, error) {
	var pf PolicyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	reg := toolkit.DefaultRegistry()
	for role, tools := range pf.Roles {
		switch types.Role(strings.ToLower(role)) {
		case types.RoleOwner, types.RoleAdmin, types.RoleMember, types.RoleViewer:
		default:
			return nil, fmt.Errorf("policy file: unknown role %q", role)
		}
		for _, name := range tools {
			if name == "*" {
				continue
			}
			if _, ok := reg.Get(name); !ok {
				return nil, fmt.Errorf("policy file: role %s names unknown tool %q", role, name)
			}
		}
	}
	return &pf, nil
}

func (pf *PolicyFile) Apply(c *AssistantConfig) {
	if len(pf.Moderation.HighSeverity) > 0 {
		c.HighSeverity = pf.Moderation.HighSeverity
	}
	if len(pf.Plans.Paid) > 0 {
		c.PaidPlans = pf.Plans.Paid
	}
	if len(pf.Roles) > 0 {
		table := toolkit.RoleTable{}
		for role, tools := range c.Roles {
			table[role] = tools
		}
		for role, tools := range pf.Roles {
			table[types.Role(strings.ToLower(role))] = tools
		}
		c.Roles = table
	}
	setInt(&c.WorkspaceHourlyLimit, pf.Limits.WorkspaceHourly)
	setInt(&c.UserHourlyLimit, pf.Limits.UserHourly)
	setInt(&c.MaxPromptChars, pf.Limits.MaxPromptChars)
	setInt(&c.MaxTotalContext, pf.Context.MaxTotal)
	setInt(&c.HistoryLimit, pf.Context.HistoryLimit)
	setInt(&c.MessageChars, pf.Context.MessageChars)
	setInt(&c.EntityLimit, pf.Context.EntityLimit)
	setInt(&c.SelectedLimit, pf.Context.SelectedLimit)
	setInt(&c.DocumentChars, pf.Context.DocumentChars)
	setInt(&c.WebResults, pf.Context.WebResults)
	if v := pf.Billing.CostPer1K; v != nil {
		c.CostPer1K = *v
	}
	if v := pf.Billing.MinCost; v != nil {
		c.MinRequestCost = *v
	}
	if v := pf.Billing.EstimatedCost; v != nil {
		c.EstimatedCost = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
