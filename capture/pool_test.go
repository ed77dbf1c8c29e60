package capture

import "testing"

func TestBufferPool_getReturnsCorrectSize(t *testing.T) {
	p := newBufferPool(4, 128)
	buf := p.get()
	if len(buf) != 128 {
		t.Fatalf("want len 128, got %d", len(buf))
	}
}

func TestBufferPool_putGetRoundTrip(t *testing.T) {
	p := newBufferPool(2, 16)
	a := p.get()
	b := p.get()
	// Pool is now empty; a third get must allocate fresh rather than block.
	c := p.get()
	if len(c) != 16 {
		t.Fatalf("want len 16, got %d", len(c))
	}
	p.put(a)
	p.put(b)
	p.put(c)
	d := p.get()
	if len(d) != 16 {
		t.Fatalf("want len 16, got %d", len(d))
	}
}

func TestBufferPool_putDropsBeyondCapacity(t *testing.T) {
	p := newBufferPool(1, 8)
	// Drain the single seeded buffer.
	p.get()
	// Pool is now empty; overfill it.
	p.put(make([]byte, 8))
	p.put(make([]byte, 8))
	p.put(make([]byte, 8))
	if len(p.free) != 1 {
		t.Fatalf("want pool depth capped at 1, got %d buffered", len(p.free))
	}
}

func TestBufferPool_seededAtConstruction(t *testing.T) {
	const depth = 5
	p := newBufferPool(depth, 32)
	if len(p.free) != depth {
		t.Fatalf("want %d seeded buffers, got %d", depth, len(p.free))
	}
}
