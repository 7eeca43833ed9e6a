package download

import "testing"

func TestProgressIndeterminateBelowThree(t *testing.T) {
	p := NewProgress(2)
	p.MarkDone()
	snap := p.Snapshot()
	if !snap.Indeterminate {
		t.Errorf("expected indeterminate progress for total=2, got determinate")
	}
}

func TestProgressDeterminateAtThreeOrMore(t *testing.T) {
	p := NewProgress(3)
	snap := p.Snapshot()
	if snap.Indeterminate {
		t.Errorf("expected determinate progress for total=3, got indeterminate")
	}
}

func TestProgressCountsErrorsAsDone(t *testing.T) {
	p := NewProgress(5)
	p.MarkDone()
	p.MarkError()
	snap := p.Snapshot()
	if snap.Done != 2 {
		t.Errorf("Done = %d, want 2", snap.Done)
	}
	if snap.Errors != 1 {
		t.Errorf("Errors = %d, want 1", snap.Errors)
	}
}
