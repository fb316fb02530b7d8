package http2

import "testing"

func TestFlowControlConsumeAndAvail(t *testing.T) {
	fc := newFlowControl(100)

	fc.Consume(40)
	if got := fc.Avail(); got != 60 {
		t.Fatalf("unexpected avail: %d", got)
	}
}

func TestFlowControlAvailNeverNegative(t *testing.T) {
	fc := newFlowControl(10)

	fc.Consume(30)
	if got := fc.Avail(); got != 0 {
		t.Fatalf("Avail should clamp to 0 for a negative window, got %d", got)
	}
	if fc.size >= 0 {
		t.Fatalf("the underlying signed size should still reflect the deficit, got %d", fc.size)
	}
}

func TestFlowControlIncrementRestoresWindow(t *testing.T) {
	fc := newFlowControl(10)
	fc.Consume(10)

	if err := fc.Increment(5); err != nil {
		t.Fatal(err)
	}
	if got := fc.Avail(); got != 5 {
		t.Fatalf("unexpected avail after increment: %d", got)
	}
}

func TestFlowControlIncrementRejectsOverflow(t *testing.T) {
	fc := newFlowControl(maxFlowControlWindow)

	if err := fc.Increment(1); err == nil {
		t.Fatal("expected a FLOW_CONTROL_ERROR incrementing past the 2^31-1 ceiling")
	}
}

func TestFlowControlRebaseAllowsNegativeWindow(t *testing.T) {
	fc := newFlowControl(100)
	fc.Consume(80)

	// SETTINGS_INITIAL_WINDOW_SIZE shrinking by more than the remaining
	// window is explicitly allowed to push the window negative.
	fc.Rebase(-50)
	if got := fc.Avail(); got != 0 {
		t.Fatalf("expected Avail to clamp to 0, got %d", got)
	}
	if fc.size != -30 {
		t.Fatalf("expected underlying size -30, got %d", fc.size)
	}

	fc.Rebase(30)
	if fc.size != 0 {
		t.Fatalf("expected underlying size back to 0, got %d", fc.size)
	}
}

func TestRecvWindowThreshold(t *testing.T) {
	if got := recvWindowThreshold(65536); got != 32768 {
		t.Fatalf("unexpected threshold: %d", got)
	}
}
