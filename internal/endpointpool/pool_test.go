package endpointpool

import "testing"

func TestPool_RoundRobinAdvancesOnlyOnFailure(t *testing.T) {
	p := New("wifi", []string{"ssid-a", "ssid-b", "ssid-c"})

	got, err := p.Select()
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got != "ssid-a" {
		t.Errorf("Select = %q, want ssid-a", got)
	}

	// Selecting again without marking anything should return the same.
	got2, _ := p.Select()
	if got2 != "ssid-a" {
		t.Errorf("repeated Select = %q, want ssid-a (no movement without MarkFailed)", got2)
	}

	p.MarkFailed("ssid-a")
	got3, _ := p.Select()
	if got3 != "ssid-b" {
		t.Errorf("Select after MarkFailed = %q, want ssid-b", got3)
	}
}

func TestPool_StickyPersistsUntilFailure(t *testing.T) {
	p := New("ntp", []string{"ntp-1", "ntp-2"})
	p.MarkSuccess("ntp-2")

	got, _ := p.Select()
	if got != "ntp-2" {
		t.Errorf("Select = %q, want sticky ntp-2", got)
	}

	p.MarkFailed("ntp-2")
	got2, _ := p.Select()
	if got2 == "ntp-2" {
		t.Error("sticky candidate should be cleared after MarkFailed")
	}
}

func TestPool_EmptyReturnsError(t *testing.T) {
	p := New("wifi", nil)
	if _, err := p.Select(); err != ErrEmptyPool {
		t.Errorf("Select on empty pool = %v, want ErrEmptyPool", err)
	}
}

func TestPool_CandidatesIsDefensiveCopy(t *testing.T) {
	p := New("wifi", []string{"a", "b"})
	got := p.Candidates()
	got[0] = "mutated"

	got2 := p.Candidates()
	if got2[0] != "a" {
		t.Error("mutating the returned slice should not affect the pool's internal state")
	}
}
