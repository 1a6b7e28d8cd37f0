// Package ordering implements the single "pick the oldest item" rule
// shared by the upload engine's PENDING scan and the retention
// controller's UPLOADED scan: prefer a real captured_at_epoch over a
// zero one, and only fall back to seq when every candidate's epoch is
// zero (the device never synced before writing it). Both callers walk
// /manifests once per pass; this package only holds the comparison, not
// the directory walk, so it stays free of any artifactstore dependency.
package ordering

// Candidate is the subset of a manifest that the ordering rule needs.
type Candidate struct {
	Seq             uint32
	CapturedAtEpoch uint64
}

// Better reports whether candidate beats current under find_oldest_pending
// / find_oldest_uploaded's tie-break rule:
//   - a nonzero epoch beats a zero epoch outright (unsynced entries sort
//     after synced ones, regardless of seq)
//   - between two nonzero epochs, the smaller (older) wins
//   - between two zero epochs, the smaller seq wins
func Better(candidate, current Candidate, haveCurrent bool) bool {
	if !haveCurrent {
		return true
	}
	switch {
	case candidate.CapturedAtEpoch > 0 && current.CapturedAtEpoch > 0:
		return candidate.CapturedAtEpoch < current.CapturedAtEpoch
	case candidate.CapturedAtEpoch > 0 && current.CapturedAtEpoch == 0:
		return true
	case candidate.CapturedAtEpoch == 0 && current.CapturedAtEpoch == 0:
		return candidate.Seq < current.Seq
	default:
		// candidate epoch == 0, current epoch > 0: current wins.
		return false
	}
}

// Oldest scans items in the order given and returns the one Better
// prefers, along with whether any candidate was found.
func Oldest(items []Candidate) (Candidate, bool) {
	var best Candidate
	found := false
	for _, c := range items {
		if Better(c, best, found) {
			best = c
			found = true
		}
	}
	return best, found
}
