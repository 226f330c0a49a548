package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsSensitiveKeys(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"prompt", "email the investor",
		"api_key", "sk-123",
		"user_id", "7d4f",
		"room_id", "r1",
		"trailing",
	})
	got := map[string]interface{}{}
	for i := 0; i+1 < len(out); i += 2 {
		got[out[i].(string)] = out[i+1]
	}
	if got["prompt"] != "[REDACTED]" || got["api_key"] != "[REDACTED]" {
		t.Fatalf("secrets leaked: %v", got)
	}
	if s, _ := got["user_id"].(string); !strings.HasPrefix(s, "hash:") {
		t.Fatalf("user_id should be hashed, got %v", got["user_id"])
	}
	if got["room_id"] != "r1" {
		t.Fatalf("room_id changed: %v", got["room_id"])
	}
	if out[len(out)-1] != "trailing" {
		t.Fatalf("odd trailing key dropped: %v", out)
	}
}

func TestSanitizeValueRedactsJWTsAndNestedMaps(t *testing.T) {
	jwt := "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig"
	if got := sanitizeValue("note", jwt); got != "[REDACTED]" {
		t.Fatalf("jwt not redacted: %v", got)
	}
	nested := sanitizeValue("details", map[string]interface{}{"password": "p", "plan": "pro"}).(map[string]interface{})
	if nested["password"] != "[REDACTED]" || nested["plan"] != "pro" {
		t.Fatalf("nested=%v", nested)
	}
}
