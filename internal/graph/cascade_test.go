package graph

import (
	"math"
	"testing"

	"github.com/doxalabs/doxa/internal/domain"
	"github.com/google/uuid"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9
}

// chainGraph builds a -> b -> c with weights 0.8 and 0.5 and intrinsic
// strengths 0.5, 0.5, 0.4.
func chainGraph(t *testing.T) *Graph {
	t.Helper()
	g := New(uuid.New())
	g.Add(mustBelief(t, "a", domain.CategoryTechnical, 0.5))
	g.Add(mustBelief(t, "b", domain.CategoryTechnical, 0.5))
	g.Add(mustBelief(t, "c", domain.CategoryTechnical, 0.4))
	if err := g.AddSupport("a", "b", 0.8); err != nil {
		t.Fatal(err)
	}
	if err := g.AddSupport("b", "c", 0.5); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestCascadeChain(t *testing.T) {
	g := chainGraph(t)
	a, _ := g.Get("a")
	a.Strength = 0.8

	affected := g.Cascade("a", 0.5, 0.8, nil)

	if len(affected) != 2 || affected[0] != "b" || affected[1] != "c" {
		t.Fatalf("affected = %v, want [b c]", affected)
	}

	// b: 0.5 + (0.8-0.5)*0.8*(1-0.5) = 0.62
	// c: 0.4 + (0.62-0.5)*0.5*(1-0.4) = 0.436
	b, _ := g.Get("b")
	c, _ := g.Get("c")
	if !almostEqual(b.Strength, 0.62) {
		t.Errorf("b.Strength = %v, want 0.62", b.Strength)
	}
	if !almostEqual(c.Strength, 0.436) {
		t.Errorf("c.Strength = %v, want 0.436", c.Strength)
	}
}

func TestCascadeDirection(t *testing.T) {
	t.Run("raising a supporter never lowers dependents", func(t *testing.T) {
		g := chainGraph(t)
		b0, _ := g.Get("b")
		c0, _ := g.Get("c")
		beforeB, beforeC := b0.Strength, c0.Strength

		g.Cascade("a", 0.5, 0.9, nil)

		if b0.Strength < beforeB {
			t.Errorf("b dropped from %v to %v on an upward cascade", beforeB, b0.Strength)
		}
		if c0.Strength < beforeC {
			t.Errorf("c dropped from %v to %v on an upward cascade", beforeC, c0.Strength)
		}
	})

	t.Run("lowering a supporter never raises dependents", func(t *testing.T) {
		g := chainGraph(t)
		b0, _ := g.Get("b")
		c0, _ := g.Get("c")
		beforeB, beforeC := b0.Strength, c0.Strength

		g.Cascade("a", 0.5, 0.1, nil)

		if b0.Strength > beforeB {
			t.Errorf("b rose from %v to %v on a downward cascade", beforeB, b0.Strength)
		}
		if c0.Strength > beforeC {
			t.Errorf("c rose from %v to %v on a downward cascade", beforeC, c0.Strength)
		}
	})
}

func TestCascadeClampsAtZero(t *testing.T) {
	g := New(uuid.New())
	g.Add(mustBelief(t, "a", domain.CategoryTechnical, 0.0))
	g.Add(mustBelief(t, "b", domain.CategoryTechnical, 0.3))
	if err := g.AddSupport("a", "b", 1.0); err != nil {
		t.Fatal(err)
	}

	// delta = (0-1)*1*(1-0.3) = -0.7, so 0.3 - 0.7 clamps to 0.
	g.Cascade("a", 1.0, 0.0, nil)

	b, _ := g.Get("b")
	if b.Strength != 0 {
		t.Errorf("b.Strength = %v, want clamped 0", b.Strength)
	}
}

func TestCascadeCycleTerminates(t *testing.T) {
	g := New(uuid.New())
	g.Add(mustBelief(t, "a", domain.CategoryTechnical, 0.7))
	g.Add(mustBelief(t, "b", domain.CategoryTechnical, 0.5))
	if err := g.AddSupport("a", "b", 0.5); err != nil {
		t.Fatal(err)
	}
	if err := g.AddSupport("b", "a", 0.5); err != nil {
		t.Fatal(err)
	}

	affected := g.Cascade("a", 0.5, 0.7, nil)

	if len(affected) != 1 || affected[0] != "b" {
		t.Fatalf("affected = %v, want [b]", affected)
	}
	a, _ := g.Get("a")
	if a.Strength != 0.7 {
		t.Errorf("origin was re-processed through the cycle: strength = %v", a.Strength)
	}
	// b: 0.5 + 0.2*0.5*0.5 = 0.55
	b, _ := g.Get("b")
	if !almostEqual(b.Strength, 0.55) {
		t.Errorf("b.Strength = %v, want 0.55", b.Strength)
	}
}

func TestCascadeDiamondProcessesOnce(t *testing.T) {
	g := New(uuid.New())
	for _, id := range []string{"a", "b", "c", "d"} {
		g.Add(mustBelief(t, id, domain.CategoryTechnical, 0.5))
	}
	for _, e := range []struct{ from, to string }{
		{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"},
	} {
		if err := g.AddSupport(e.from, e.to, 1.0); err != nil {
			t.Fatal(err)
		}
	}

	affected := g.Cascade("a", 0.5, 0.7, nil)

	seen := map[string]int{}
	for _, id := range affected {
		seen[id]++
	}
	if seen["d"] != 1 {
		t.Errorf("d processed %d times, want exactly once (affected = %v)", seen["d"], affected)
	}

	// d moved only along the first branch: 0.5 + 0.1*1*0.5 = 0.55
	d, _ := g.Get("d")
	if !almostEqual(d.Strength, 0.55) {
		t.Errorf("d.Strength = %v, want 0.55", d.Strength)
	}
}

func TestEffectiveStrength(t *testing.T) {
	t.Run("no supporters returns intrinsic", func(t *testing.T) {
		g := New(uuid.New())
		g.Add(mustBelief(t, "a", domain.CategoryTechnical, 0.45))
		if got := g.EffectiveStrength("a"); !almostEqual(got, 0.45) {
			t.Errorf("EffectiveStrength = %v, want 0.45", got)
		}
	})

	t.Run("single supporter", func(t *testing.T) {
		g := New(uuid.New())
		g.Add(mustBelief(t, "sup", domain.CategoryTechnical, 0.8))
		g.Add(mustBelief(t, "b", domain.CategoryTechnical, 0.5))
		if err := g.AddSupport("sup", "b", 0.5); err != nil {
			t.Fatal(err)
		}
		// 0.5 + 0.8*0.5*(1-0.5) = 0.7
		if got := g.EffectiveStrength("b"); !almostEqual(got, 0.7) {
			t.Errorf("EffectiveStrength = %v, want 0.7", got)
		}
	})

	t.Run("chain compounds through supporters", func(t *testing.T) {
		g := chainGraph(t)
		a, _ := g.Get("a")
		a.Strength = 0.8
		// eff(b) = 0.5 + 0.8*0.8*0.5 = 0.82
		// eff(c) = 0.4 + 0.82*0.5*0.6 = 0.646
		if got := g.EffectiveStrength("c"); !almostEqual(got, 0.646) {
			t.Errorf("EffectiveStrength(c) = %v, want 0.646", got)
		}
	})

	t.Run("clamps at one", func(t *testing.T) {
		g := New(uuid.New())
		g.Add(mustBelief(t, "s1", domain.CategoryTechnical, 1.0))
		g.Add(mustBelief(t, "s2", domain.CategoryTechnical, 1.0))
		g.Add(mustBelief(t, "b", domain.CategoryTechnical, 0.5))
		if err := g.AddSupport("s1", "b", 1.0); err != nil {
			t.Fatal(err)
		}
		if err := g.AddSupport("s2", "b", 1.0); err != nil {
			t.Fatal(err)
		}
		if got := g.EffectiveStrength("b"); got != 1.0 {
			t.Errorf("EffectiveStrength = %v, want clamped 1.0", got)
		}
	})

	t.Run("cycle contributes intrinsic on the open path", func(t *testing.T) {
		g := New(uuid.New())
		g.Add(mustBelief(t, "a", domain.CategoryTechnical, 0.6))
		g.Add(mustBelief(t, "b", domain.CategoryTechnical, 0.5))
		if err := g.AddSupport("a", "b", 0.5); err != nil {
			t.Fatal(err)
		}
		if err := g.AddSupport("b", "a", 0.5); err != nil {
			t.Fatal(err)
		}
		// Computing eff(a) recurses into b; on that path a is open and
		// contributes its intrinsic 0.6.
		// eff(b) = 0.5 + 0.6*0.5*0.5 = 0.65; eff(a) = 0.6 + 0.65*0.5*0.4 = 0.73
		if got := g.EffectiveStrength("a"); !almostEqual(got, 0.73) {
			t.Errorf("EffectiveStrength(a) = %v, want 0.73", got)
		}
		// Fresh call from b: eff(a|b open) = 0.6 + 0.5*0.5*0.4 = 0.7;
		// eff(b) = 0.5 + 0.7*0.5*0.5 = 0.675
		if got := g.EffectiveStrength("b"); !almostEqual(got, 0.675) {
			t.Errorf("EffectiveStrength(b) = %v, want 0.675", got)
		}
	})

	t.Run("missing belief is zero", func(t *testing.T) {
		g := New(uuid.New())
		if got := g.EffectiveStrength("missing"); got != 0 {
			t.Errorf("EffectiveStrength = %v, want 0", got)
		}
	})
}

// The incremental cascade and the derived effective strength are separate
// models on purpose. Both values are pinned so an accidental unification of
// the two paths fails here.
func TestPropagatedAndDerivedStrengthsDiffer(t *testing.T) {
	g1 := chainGraph(t)
	a1, _ := g1.Get("a")
	a1.Strength = 0.8
	g1.Cascade("a", 0.5, 0.8, nil)
	c1, _ := g1.Get("c")

	g2 := chainGraph(t)
	a2, _ := g2.Get("a")
	a2.Strength = 0.8
	derived := g2.EffectiveStrength("c")

	if !almostEqual(c1.Strength, 0.436) {
		t.Errorf("cascaded c = %v, want 0.436", c1.Strength)
	}
	if !almostEqual(derived, 0.646) {
		t.Errorf("derived c = %v, want 0.646", derived)
	}
	if almostEqual(c1.Strength, derived) {
		t.Error("cascaded and derived strengths should not coincide on this chain")
	}
}
