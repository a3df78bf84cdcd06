package seat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/park285/Cheese-LiveBoard/internal/rules"
)

func TestAssign_ArrivalOrder(t *testing.T) {
	r := NewRegistry()
	want := []Role{First, Second, Spectator, Spectator}
	for i, w := range want {
		if got := r.Assign(fmt.Sprintf("c%d", i)); got != w {
			t.Fatalf("conn %d: role=%s want %s", i, got, w)
		}
	}
	if r.Holder(First) != "c0" || r.Holder(Second) != "c1" {
		t.Fatalf("holders = %q, %q", r.Holder(First), r.Holder(Second))
	}
	if r.Spectators() != 2 {
		t.Fatalf("spectators = %d", r.Spectators())
	}
}

func TestAssign_Idempotent(t *testing.T) {
	r := NewRegistry()
	r.Assign("a")
	if got := r.Assign("a"); got != First {
		t.Fatalf("re-assign = %s", got)
	}
	if got := r.Assign("b"); got != Second {
		t.Fatalf("second conn = %s", got)
	}
}

func TestRelease_FreesSeatForNextNewConnection(t *testing.T) {
	r := NewRegistry()
	r.Assign("a")
	r.Assign("b")
	r.Assign("watcher")

	if got := r.Release("a"); got != First {
		t.Fatalf("release role = %s", got)
	}
	if r.Holder(First) != "" {
		t.Fatalf("seat not cleared")
	}
	// existing spectator is not promoted
	if r.RoleOf("watcher") != Spectator {
		t.Fatalf("spectator role changed")
	}
	if got := r.Assign("c"); got != First {
		t.Fatalf("new conn after release = %s, want first", got)
	}
	if got := r.Assign("d"); got != Spectator {
		t.Fatalf("late conn = %s, want spectator", got)
	}
}

func TestRelease_SpectatorAndUnknownAreNoops(t *testing.T) {
	r := NewRegistry()
	r.Assign("a")
	r.Assign("b")
	r.Assign("s")
	if got := r.Release("s"); got != Spectator {
		t.Fatalf("release spectator = %s", got)
	}
	if got := r.Release("nobody"); got != "" {
		t.Fatalf("release unknown = %s", got)
	}
	if r.Holder(First) != "a" || r.Holder(Second) != "b" {
		t.Fatalf("seats changed")
	}
}

func TestAssign_ConcurrentConnections(t *testing.T) {
	r := NewRegistry()
	const n = 64
	roles := make([]Role, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			roles[i] = r.Assign(fmt.Sprintf("c%d", i))
		}(i)
	}
	wg.Wait()
	counts := map[Role]int{}
	for _, role := range roles {
		counts[role]++
	}
	if counts[First] != 1 || counts[Second] != 1 || counts[Spectator] != n-2 {
		t.Fatalf("role counts = %v", counts)
	}
}

func TestRoleSides(t *testing.T) {
	if s, ok := First.Side(); !ok || s != rules.White || First.Tag() != "w" {
		t.Fatalf("first seat side = %s", s)
	}
	if s, ok := Second.Side(); !ok || s != rules.Black || Second.Tag() != "b" {
		t.Fatalf("second seat side = %s", s)
	}
	if _, ok := Spectator.Side(); ok || Spectator.Tag() != "" {
		t.Fatalf("spectator has a side")
	}
	if ForSide(rules.Black) != Second || ForSide(rules.White) != First {
		t.Fatalf("ForSide mismatch")
	}
}
