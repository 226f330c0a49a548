package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	types "github.com/yungbote/huddle-backend/internal/domain"
	"github.com/yungbote/huddle-backend/internal/platform/logger"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "JWT_SECRET_KEY", "JWT_ISSUER",
		"LLM_PROVIDER", "LLM_MODEL", "MODERATION_PROVIDER", "MODERATION_URL",
		"ASSISTANT_POLICY_FILE", "ASSISTANT_MAX_PROMPT_CHARS", "ASSISTANT_USER_HOURLY_LIMIT",
		"ASSISTANT_PAID_PLANS", "ASSISTANT_COST_PER_1K_TOKENS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig(logger.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.IsDevelopment() {
		t.Fatalf("expected development env, got %q", cfg.Env)
	}
	if cfg.JWTSecretKey != "dev-secret" {
		t.Fatalf("JWTSecretKey=%q", cfg.JWTSecretKey)
	}
	if cfg.LLMProvider != "openai" || cfg.ModerationProvider != "guard" {
		t.Fatalf("providers=%q/%q", cfg.LLMProvider, cfg.ModerationProvider)
	}
	if cfg.Assistant.MaxPromptChars != 4000 {
		t.Fatalf("MaxPromptChars=%d", cfg.Assistant.MaxPromptChars)
	}
	if got := cfg.Assistant.Roles[types.RoleViewer]; len(got) != 1 || got[0] != "web_search" {
		t.Fatalf("viewer tools=%v", got)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("ASSISTANT_MAX_PROMPT_CHARS", "1500")
	t.Setenv("ASSISTANT_PAID_PLANS", "team, scale")

	cfg, err := LoadConfig(logger.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLMProvider != "anthropic" {
		t.Fatalf("LLMProvider=%q", cfg.LLMProvider)
	}
	if cfg.Assistant.MaxPromptChars != 1500 {
		t.Fatalf("MaxPromptChars=%d", cfg.Assistant.MaxPromptChars)
	}
	if strings.Join(cfg.Assistant.PaidPlans, ",") != "team,scale" {
		t.Fatalf("PaidPlans=%v", cfg.Assistant.PaidPlans)
	}
}

func TestLoadConfigPolicyFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ASSISTANT_USER_HOURLY_LIMIT", "12")

	path := filepath.Join(t.TempDir(), "policy.yaml")
	body := `
plans:
  paid: [growth]
roles:
  viewer: []
  member: [create_task, web_search]
limits:
  workspace_hourly: 50
billing:
  cost_per_1k_tokens: 2.5
  min_request_cost: 3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	t.Setenv("ASSISTANT_POLICY_FILE", path)

	cfg, err := LoadConfig(logger.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	a := cfg.Assistant
	if len(a.PaidPlans) != 1 || a.PaidPlans[0] != "growth" {
		t.Fatalf("PaidPlans=%v", a.PaidPlans)
	}
	if len(a.Roles[types.RoleViewer]) != 0 {
		t.Fatalf("viewer should have no tools, got %v", a.Roles[types.RoleViewer])
	}
	if got := a.Roles[types.RoleMember]; len(got) != 2 {
		t.Fatalf("member tools=%v", got)
	}
	if got := a.Roles[types.RoleOwner]; len(got) != 1 || got[0] != "*" {
		t.Fatalf("owner tools should keep the default, got %v", got)
	}
	if a.WorkspaceHourlyLimit != 50 {
		t.Fatalf("WorkspaceHourlyLimit=%d", a.WorkspaceHourlyLimit)
	}
	if a.UserHourlyLimit != 12 {
		t.Fatalf("UserHourlyLimit=%d, env value should survive", a.UserHourlyLimit)
	}
	if a.CostPer1K != 2.5 || a.MinRequestCost != 3 {
		t.Fatalf("pricing=%v/%d", a.CostPer1K, a.MinRequestCost)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "production needs a jwt secret",
			env:  map[string]string{"APP_ENV": "production", "MODERATION_URL": "http://guard"},
			want: "JWT_SECRET_KEY",
		},
		{
			name: "unknown llm provider",
			env:  map[string]string{"LLM_PROVIDER": "mystery"},
			want: "LLM_PROVIDER",
		},
		{
			name: "unknown moderation provider",
			env:  map[string]string{"MODERATION_PROVIDER": "regex"},
			want: "MODERATION_PROVIDER",
		},
		{
			name: "production guard needs a url",
			env:  map[string]string{"APP_ENV": "production", "JWT_SECRET_KEY": "s"},
			want: "MODERATION_URL",
		},
		{
			name: "missing policy file",
			env:  map[string]string{"ASSISTANT_POLICY_FILE": "/nonexistent/policy.yaml"},
			want: "read policy file",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(logger.Nop())
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error=%q, want it to mention %q", err, tc.want)
			}
		})
	}
}

func TestParsePolicyRejectsUnknownNames(t *testing.T) {
	cases := map[string]string{
		"unknown role": "roles:\n  guest: [web_search]\n",
		"unknown tool": "roles:\n  member: [delete_everything]\n",
		"bad yaml":     "roles: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParsePolicy([]byte(body)); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}
