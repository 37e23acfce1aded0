package mana

import "testing"

func TestPoolConsume(t *testing.T) {
	pool := NewPool(100, 5)

	if !pool.CanConsume(30) {
		t.Fatalf("expected full pool to cover 30")
	}
	if !pool.Consume(30) {
		t.Fatalf("expected consume to succeed")
	}
	if got := pool.Current(); got != 70 {
		t.Fatalf("expected 70 remaining, got %v", got)
	}
	if pool.Consume(80) {
		t.Fatalf("expected consume beyond balance to fail")
	}
	if got := pool.Current(); got != 70 {
		t.Fatalf("failed consume must not change balance, got %v", got)
	}
}

func TestPoolConsumeRejectsNegative(t *testing.T) {
	pool := NewPool(50, 0)
	if pool.Consume(-10) {
		t.Fatalf("negative amounts must be rejected")
	}
	if got := pool.Current(); got != 50 {
		t.Fatalf("expected balance unchanged, got %v", got)
	}
}

func TestPoolRegenerateClampsAtMax(t *testing.T) {
	pool := NewPool(100, 10)
	pool.Drain(25)
	pool.Regenerate(1.5)
	if got := pool.Current(); got != 90 {
		t.Fatalf("expected 90 after 1.5s regen, got %v", got)
	}
	pool.Regenerate(5)
	if got := pool.Current(); got != 100 {
		t.Fatalf("expected regen to clamp at max, got %v", got)
	}
}

func TestPoolDrainFloorsAtZero(t *testing.T) {
	pool := NewPool(40, 0)
	pool.Drain(60)
	if got := pool.Current(); got != 0 {
		t.Fatalf("expected empty pool, got %v", got)
	}
}
