package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestPurchaseTransitions(t *testing.T) {
	cases := []struct {
		status   PurchaseStatus
		receive  bool
		complete bool
		remove   bool
	}{
		{PurchaseDraft, true, false, true},
		{PurchaseReceived, true, true, false},
		{PurchaseCompleted, false, false, false},
	}
	for _, tc := range cases {
		if got := tc.status.CanReceive(); got != tc.receive {
			t.Fatalf("%s.CanReceive() = %v, want %v", tc.status, got, tc.receive)
		}
		if got := tc.status.CanComplete(); got != tc.complete {
			t.Fatalf("%s.CanComplete() = %v, want %v", tc.status, got, tc.complete)
		}
		if got := tc.status.CanDelete(); got != tc.remove {
			t.Fatalf("%s.CanDelete() = %v, want %v", tc.status, got, tc.remove)
		}
	}
}

func TestApprovalLevelChain(t *testing.T) {
	if Level1.From() != RequestPending || Level1.To() != RequestLevel1Approved {
		t.Fatalf("level 1 chain broken: %s -> %s", Level1.From(), Level1.To())
	}
	for _, level := range []ApprovalLevel{Level2, Level3} {
		previous := level - 1
		if level.From() != previous.To() {
			t.Fatalf("level %d starts from %s, want %s", level, level.From(), previous.To())
		}
	}
	if ApprovalLevel(4).Valid() || ApprovalLevel(0).Valid() {
		t.Fatalf("out of range levels must be invalid")
	}
}

func TestCanReject(t *testing.T) {
	cases := []struct {
		variant RequestVariant
		status  RequestStatus
		want    bool
	}{
		{RequestMultiLevel, RequestPending, true},
		{RequestMultiLevel, RequestLevel1Approved, true},
		{RequestMultiLevel, RequestLevel2Approved, true},
		{RequestMultiLevel, RequestLevel3Approved, false},
		{RequestMultiLevel, RequestDistributed, false},
		{RequestMultiLevel, RequestReceived, false},
		{RequestDirect, RequestPending, true},
		{RequestDirect, RequestCompleted, false},
		{RequestDirect, RequestRejected, false},
	}
	for _, tc := range cases {
		if got := CanReject(tc.variant, tc.status); got != tc.want {
			t.Fatalf("CanReject(%s, %s) = %v, want %v", tc.variant, tc.status, got, tc.want)
		}
	}
}

func TestOpnameTransitions(t *testing.T) {
	cases := []struct {
		status  OpnameStatus
		edit    bool
		submit  bool
		approve bool
		reopen  bool
	}{
		{OpnameDraft, true, true, false, false},
		{OpnameCompleted, false, false, true, true},
		{OpnameApproved, false, false, false, false},
	}
	for _, tc := range cases {
		if got := tc.status.CanEdit(); got != tc.edit {
			t.Fatalf("%s.CanEdit() = %v, want %v", tc.status, got, tc.edit)
		}
		if got := tc.status.CanSubmit(); got != tc.submit {
			t.Fatalf("%s.CanSubmit() = %v, want %v", tc.status, got, tc.submit)
		}
		if got := tc.status.CanApprove(); got != tc.approve {
			t.Fatalf("%s.CanApprove() = %v, want %v", tc.status, got, tc.approve)
		}
		if got := tc.status.CanReopen(); got != tc.reopen {
			t.Fatalf("%s.CanReopen() = %v, want %v", tc.status, got, tc.reopen)
		}
	}
}

func TestOpnameLineVariance(t *testing.T) {
	line := StockOpnameLine{SystemQuantity: 8, PhysicalQuantity: 5}
	if line.Variance() != -3 {
		t.Fatalf("variance = %d, want -3", line.Variance())
	}
	line.PhysicalQuantity = 12
	if line.Variance() != 4 {
		t.Fatalf("variance = %d, want 4", line.Variance())
	}
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("load item: %w", NotFound("item", int64(7)))
	if !IsNotFound(wrapped) || !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("wrapped not-found error must match ErrNotFound")
	}
	if IsState(wrapped) || IsValidation(wrapped) {
		t.Fatalf("not-found error misclassified")
	}

	state := fmt.Errorf("complete: %w", InvalidState("purchase", 3, string(PurchaseDraft), "complete"))
	if !IsState(state) {
		t.Fatalf("state error not detected")
	}
	if state.Error() != "complete: cannot complete purchase 3 in status draft" {
		t.Fatalf("unexpected message %q", state.Error())
	}

	conflict := &ConcurrencyError{Op: "complete purchase", Err: errors.New("40001")}
	if !IsConcurrency(fmt.Errorf("tx: %w", conflict)) {
		t.Fatalf("concurrency error not detected")
	}
	if !IsValidation(Invalid("quantity", "must be positive")) {
		t.Fatalf("validation error not detected")
	}
}
