package model

import (
	"encoding/json"
	"testing"
)

func TestLinkEncodesAsPair(t *testing.T) {
	raw, err := json.Marshal([]Link{{A: "SAT-1", B: "SAT-2"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(raw) != `[["SAT-1","SAT-2"]]` {
		t.Fatalf("encoded %s", raw)
	}

	var l Link
	if err := json.Unmarshal([]byte(`["SAT-1","SAT-2","SAT-3"]`), &l); err == nil {
		t.Fatalf("expected error for a three endpoint link")
	}
}
