package ordering

import "testing"

func TestBetter_SyncedBeatsUnsynced(t *testing.T) {
	synced := Candidate{Seq: 5, CapturedAtEpoch: 1_700_000_000}
	unsynced := Candidate{Seq: 1, CapturedAtEpoch: 0}

	if !Better(synced, unsynced, true) {
		t.Error("a nonzero epoch must beat a zero epoch regardless of seq")
	}
	if Better(unsynced, synced, true) {
		t.Error("a zero epoch must never beat a nonzero epoch")
	}
}

func TestBetter_OlderEpochWins(t *testing.T) {
	older := Candidate{Seq: 9, CapturedAtEpoch: 100}
	newer := Candidate{Seq: 1, CapturedAtEpoch: 200}

	if !Better(older, newer, true) {
		t.Error("smaller epoch should win between two synced candidates")
	}
	if Better(newer, older, true) {
		t.Error("larger epoch should not win")
	}
}

func TestBetter_SeqTiebreakWhenBothUnsynced(t *testing.T) {
	a := Candidate{Seq: 3, CapturedAtEpoch: 0}
	b := Candidate{Seq: 7, CapturedAtEpoch: 0}

	if !Better(a, b, true) {
		t.Error("smaller seq should win when both epochs are zero")
	}
	if Better(b, a, true) {
		t.Error("larger seq should not win")
	}
}

func TestBetter_FirstCandidateAlwaysWins(t *testing.T) {
	any := Candidate{Seq: 1}
	if !Better(any, Candidate{}, false) {
		t.Error("first candidate should always beat no current best")
	}
}

func TestOldest_PicksAcrossMixedEpochs(t *testing.T) {
	items := []Candidate{
		{Seq: 10, CapturedAtEpoch: 0},
		{Seq: 2, CapturedAtEpoch: 500},
		{Seq: 3, CapturedAtEpoch: 200},
		{Seq: 1, CapturedAtEpoch: 0},
	}
	best, found := Oldest(items)
	if !found {
		t.Fatal("expected a best candidate")
	}
	if best.Seq != 3 {
		t.Errorf("Oldest picked seq=%d, want 3 (epoch 200 is the smallest nonzero)", best.Seq)
	}
}

func TestOldest_AllUnsyncedFallsBackToSeq(t *testing.T) {
	items := []Candidate{
		{Seq: 10, CapturedAtEpoch: 0},
		{Seq: 2, CapturedAtEpoch: 0},
		{Seq: 5, CapturedAtEpoch: 0},
	}
	best, found := Oldest(items)
	if !found {
		t.Fatal("expected a best candidate")
	}
	if best.Seq != 2 {
		t.Errorf("Oldest picked seq=%d, want 2", best.Seq)
	}
}

func TestOldest_EmptyReturnsNotFound(t *testing.T) {
	_, found := Oldest(nil)
	if found {
		t.Error("expected not found for empty input")
	}
}
