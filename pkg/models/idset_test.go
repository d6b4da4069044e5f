package models

import (
	"encoding/json"
	"testing"
)

func TestIDSetAddAndHas(t *testing.T) {
	s := NewIDSet()
	s.Add(3)
	s.Add(1)
	s.Add(3)

	if s.Len() != 2 {
		t.Errorf("expected 2 members after duplicate add, got %d", s.Len())
	}
	if !s.Has(1) || !s.Has(3) {
		t.Error("expected members 1 and 3")
	}
	if s.Has(2) {
		t.Error("did not expect member 2")
	}
}

func TestIDSetString(t *testing.T) {
	if got := NewIDSet().String(); got != "[]" {
		t.Errorf("expected empty set to render as [], got %s", got)
	}
	if got := NewIDSet(34, 12).String(); got != "[12 34]" {
		t.Errorf("expected sorted bracketed form [12 34], got %s", got)
	}
}

func TestIDSetJSONRoundTrip(t *testing.T) {
	s := NewIDSet(9, 2, 5)
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != "[2,5,9]" {
		t.Errorf("expected sorted JSON array, got %s", data)
	}

	var back IDSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back.Len() != 3 || !back.Has(9) {
		t.Errorf("round trip lost members: %v", back)
	}
}
