package components

import (
	"testing"

	"github.com/bububa/regulation-agents/schema"
)

func TestMemoryOverflow(t *testing.T) {
	mem := NewMemory(3)
	for _, v := range []string{"q1", "a1", "q2", "a2"} {
		mem.NewMessage(UserRole, schema.String(v))
	}
	history := mem.History()
	if len(history) != 3 {
		t.Fatalf("expect 3 messages, got %d", len(history))
	}
	if got := history[0].StringifiedContent(); got != "a1" {
		t.Errorf("expect oldest message dropped, first is %s", got)
	}
}

func TestMemoryDeleteTurn(t *testing.T) {
	mem := NewMemory(0)
	mem.NewTurn()
	first := mem.TurnID()
	mem.NewMessage(UserRole, schema.String("q1"))
	mem.NewMessage(AssistantRole, schema.String("a1"))
	mem.NewTurn()
	second := mem.TurnID()
	mem.NewMessage(UserRole, schema.String("q2"))
	if n := mem.Turns(); n != 2 {
		t.Fatalf("expect 2 turns, got %d", n)
	}
	if err := mem.DeleteTurn(second); err != nil {
		t.Fatal(err)
	}
	if mem.TurnID() != first {
		t.Errorf("expect current turn rolled back to %s, got %s", first, mem.TurnID())
	}
	if err := mem.DeleteTurn("missing"); err == nil {
		t.Error("expect error for unknown turn")
	}
}

func TestSessionsEviction(t *testing.T) {
	sessions := NewSessions(2, 10)
	a := sessions.Get("a")
	sessions.Get("b")
	if sessions.Get("a") != a {
		t.Fatal("expect same memory for same session")
	}
	sessions.Get("c")
	if sessions.Len() != 2 {
		t.Fatalf("expect 2 sessions, got %d", sessions.Len())
	}
	if sessions.Get("a") != a {
		t.Error("recently used session must survive eviction")
	}
}

func TestMemoryQATurns(t *testing.T) {
	mem := NewMemory(5)
	mem.AddTurn(schema.String("What is CS-25?"), schema.String("Large aeroplanes."))
	mem.AddTurn(schema.String("And CS-23?"), schema.String("Normal category aeroplanes."))
	mem.AddTurn(schema.String("And CS-27?"), schema.String("Small rotorcraft."))
	if n := mem.MessageCount(); n != 5 {
		t.Fatalf("expect 5 messages, got %d", n)
	}
	turns := mem.QATurns()
	if len(turns) != 2 {
		t.Fatalf("expect the cut turn to be skipped, got %v", turns)
	}
	if turns[0].Question != "And CS-23?" || turns[1].Answer != "Small rotorcraft." {
		t.Errorf("unexpected turns %v", turns)
	}
}
