package pool

import (
	"testing"
	"time"
)

func TestTryAdmitDualConstraint(t *testing.T) {
	c := &Credential{id: "c1", secret: "secret-abcd", maxConcurrent: 2, maxStarts: 3}
	base := time.Now()

	if !c.tryAdmit(base) {
		t.Fatal("first admit should succeed")
	}
	if !c.tryAdmit(base.Add(time.Second)) {
		t.Fatal("second admit should succeed")
	}
	// Concurrency full (2/2) even though rate has room (2/3).
	if c.tryAdmit(base.Add(2 * time.Second)) {
		t.Fatal("third admit should fail on concurrency")
	}

	c.releaseSlot()
	if !c.tryAdmit(base.Add(3 * time.Second)) {
		t.Fatal("admit after release should succeed")
	}

	// Rate now full (3/3) even though a concurrency slot is free.
	c.releaseSlot()
	if c.tryAdmit(base.Add(4 * time.Second)) {
		t.Fatal("admit should fail on rate window")
	}
}

func TestPruneDropsOnlyStaleStarts(t *testing.T) {
	c := &Credential{id: "c1", secret: "x", maxConcurrent: 10, maxStarts: 2}
	base := time.Now()

	if !c.tryAdmit(base) || !c.tryAdmit(base.Add(30*time.Second)) {
		t.Fatal("setup admits failed")
	}
	if c.tryAdmit(base.Add(45 * time.Second)) {
		t.Fatal("window should be saturated at t+45s")
	}

	// At t+61s the first start has aged out but the second has not.
	if !c.tryAdmit(base.Add(61 * time.Second)) {
		t.Fatal("expected one slot back at t+61s")
	}
	if c.tryAdmit(base.Add(62 * time.Second)) {
		t.Fatal("window should be saturated again at t+62s")
	}

	// Past both starts' expiry plus the new one from t+61s still pending.
	if !c.tryAdmit(base.Add(92 * time.Second)) {
		t.Fatal("expected capacity at t+92s")
	}
}

func TestReleaseSlotNeverGoesNegative(t *testing.T) {
	c := &Credential{id: "c1", secret: "x", maxConcurrent: 1, maxStarts: 10}
	c.releaseSlot()
	if c.activeHolders != 0 {
		t.Fatalf("activeHolders went negative: %d", c.activeHolders)
	}
}

func TestSecretTail(t *testing.T) {
	c := &Credential{secret: "abc"}
	if got := c.SecretTail(); got != "abc" {
		t.Errorf("short secret tail = %q", got)
	}
	c = &Credential{secret: "sk-longer-key-7890"}
	if got := c.SecretTail(); got != "7890" {
		t.Errorf("tail = %q, want 7890", got)
	}
}

func TestSnapshotPrunesBeforeReporting(t *testing.T) {
	c := &Credential{id: "c1", secret: "wxyz", maxConcurrent: 3, maxStarts: 3}
	base := time.Now()
	c.tryAdmit(base)
	c.tryAdmit(base.Add(time.Second))

	snap := c.snapshot(base.Add(2 * time.Second))
	if snap.StartsInWindow != 2 {
		t.Errorf("starts in window = %d, want 2", snap.StartsInWindow)
	}
	if !snap.OldestStart.Equal(base) {
		t.Errorf("oldest start = %v, want %v", snap.OldestStart, base)
	}

	snap = c.snapshot(base.Add(2 * time.Minute))
	if snap.StartsInWindow != 0 {
		t.Errorf("stale starts not pruned: %d", snap.StartsInWindow)
	}
}
