package domain

type PurchaseStatus string

const (
	PurchaseDraft     PurchaseStatus = "draft"
	PurchaseReceived  PurchaseStatus = "received"
	PurchaseCompleted PurchaseStatus = "completed"
)

func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchaseDraft, PurchaseReceived, PurchaseCompleted:
		return true
	}
	return false
}

// CanReceive allows re-entering received so counts can be corrected before completion.
func (s PurchaseStatus) CanReceive() bool {
	return s == PurchaseDraft || s == PurchaseReceived
}

func (s PurchaseStatus) CanComplete() bool {
	return s == PurchaseReceived
}

func (s PurchaseStatus) CanDelete() bool {
	return s == PurchaseDraft
}

type RequestStatus string

const (
	RequestPending        RequestStatus = "pending"
	RequestLevel1Approved RequestStatus = "level1_approved"
	RequestLevel2Approved RequestStatus = "level2_approved"
	RequestLevel3Approved RequestStatus = "level3_approved"
	RequestDistributed    RequestStatus = "distributed"
	RequestReceived       RequestStatus = "received"
	RequestCompleted      RequestStatus = "completed"
	RequestRejected       RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestLevel1Approved, RequestLevel2Approved, RequestLevel3Approved,
		RequestDistributed, RequestReceived, RequestCompleted, RequestRejected:
		return true
	}
	return false
}

// ApprovalLevel is one of the three sign-offs of a multi-level request.
type ApprovalLevel int

const (
	Level1 ApprovalLevel = 1
	Level2 ApprovalLevel = 2
	Level3 ApprovalLevel = 3
)

func (l ApprovalLevel) Valid() bool {
	return l >= Level1 && l <= Level3
}

// From is the only status an approval at this level may start from.
func (l ApprovalLevel) From() RequestStatus {
	switch l {
	case Level1:
		return RequestPending
	case Level2:
		return RequestLevel1Approved
	case Level3:
		return RequestLevel2Approved
	}
	return ""
}

// To is the status reached once this level signs off.
func (l ApprovalLevel) To() RequestStatus {
	switch l {
	case Level1:
		return RequestLevel1Approved
	case Level2:
		return RequestLevel2Approved
	case Level3:
		return RequestLevel3Approved
	}
	return ""
}

// CanReject reports whether a request in status s may still be rejected.
// Multi-level requests are committed once the third level signs off.
func CanReject(variant RequestVariant, s RequestStatus) bool {
	if variant == RequestDirect {
		return s == RequestPending
	}
	switch s {
	case RequestPending, RequestLevel1Approved, RequestLevel2Approved:
		return true
	}
	return false
}

func (s RequestStatus) CanDelete() bool {
	return s == RequestPending
}

type OpnameStatus string

const (
	OpnameDraft     OpnameStatus = "draft"
	OpnameCompleted OpnameStatus = "completed"
	OpnameApproved  OpnameStatus = "approved"
)

func (s OpnameStatus) Valid() bool {
	switch s {
	case OpnameDraft, OpnameCompleted, OpnameApproved:
		return true
	}
	return false
}

func (s OpnameStatus) CanEdit() bool {
	return s == OpnameDraft
}

func (s OpnameStatus) CanSubmit() bool {
	return s == OpnameDraft
}

func (s OpnameStatus) CanApprove() bool {
	return s == OpnameCompleted
}

// CanReopen reports whether a submitted count may go back to draft.
func (s OpnameStatus) CanReopen() bool {
	return s == OpnameCompleted
}
