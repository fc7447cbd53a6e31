package balloon

import "testing"

func TestColorForDeterministic(t *testing.T) {
	seeds := []string{"a", "abc123", "9f8c2d14-77aa-4a02-b1a1-2a2d3b4c5d6e", ""}
	for _, seed := range seeds {
		first := ColorFor(seed, Palette)
		for i := 0; i < 10; i++ {
			if got := ColorFor(seed, Palette); got != first {
				t.Fatalf("seed %q: got %q, want %q", seed, got, first)
			}
		}
	}
}

func TestColorForInPalette(t *testing.T) {
	inPalette := make(map[string]bool, len(Palette))
	for _, color := range Palette {
		inPalette[color] = true
	}

	seeds := []string{"x", "problem-1", "problem-2", "local-0f3a", "Ж日本語"}
	for _, seed := range seeds {
		if got := ColorFor(seed, Palette); !inPalette[got] {
			t.Fatalf("seed %q: color %q not in palette", seed, got)
		}
	}
}

func TestColorForKnownHashes(t *testing.T) {
	// "a" hashes to 97, "ab" to 97*31+98 = 3105.
	if got, want := ColorFor("a", Palette), Palette[97%len(Palette)]; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := ColorFor("ab", Palette), Palette[3105%len(Palette)]; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestColorForNegativeHash(t *testing.T) {
	// Long seeds overflow the 32-bit hash into negative values; the index
	// must still land in range.
	seed := "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz"
	got := ColorFor(seed, Palette)
	if got == "" {
		t.Fatal("expected a color for an overflowing seed")
	}
}

func TestColorForEmptyPalette(t *testing.T) {
	if got := ColorFor("seed", nil); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
