package roller_test

import (
	"testing"

	"github.com/duskward/narrator/internal/roller"
)

func TestParseExpression_Basic(t *testing.T) {
	e, err := roller.ParseExpression("2d6+3")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	if len(e.Faces) != 2 || e.Faces[0] != 6 || e.Faces[1] != 6 {
		t.Fatalf("Faces = %v", e.Faces)
	}
	if e.Base != 3 {
		t.Fatalf("Base = %d, want 3", e.Base)
	}
}

func TestParseExpression_NegativeModifier(t *testing.T) {
	e, err := roller.ParseExpression("3d8-1")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	if len(e.Faces) != 3 || e.Base != -1 {
		t.Fatalf("got faces=%v base=%d", e.Faces, e.Base)
	}
}

func TestParseExpression_ImplicitCount(t *testing.T) {
	e, err := roller.ParseExpression("d20")
	if err != nil {
		t.Fatalf("ParseExpression: %v", err)
	}
	if len(e.Faces) != 1 || e.Faces[0] != 20 {
		t.Fatalf("Faces = %v", e.Faces)
	}
}

func TestParseExpression_Invalid(t *testing.T) {
	for _, bad := range []string{"", "6", "d", "2x6"} {
		if _, err := roller.ParseExpression(bad); err == nil {
			t.Errorf("ParseExpression(%q) expected error", bad)
		}
	}
}

func TestExpression_RollWithinBounds(t *testing.T) {
	e, _ := roller.ParseExpression("4d6+2")
	for i := 0; i < 50; i++ {
		rolls, total := e.Roll()
		sum := 2
		for _, r := range rolls {
			if r < 1 || r > 6 {
				t.Fatalf("roll %d out of bounds", r)
			}
			sum += r
		}
		if sum != total {
			t.Fatalf("total %d != computed sum %d", total, sum)
		}
	}
}
