package domain

// validApprovalTransitions lists the decisions a consultant may record.
// A rejected request can be reconsidered; an approval is final.
var validApprovalTransitions = map[ApprovalStatus][]ApprovalStatus{
	ApprovalPending:  {ApprovalApproved, ApprovalRejected},
	ApprovalRejected: {ApprovalApproved},
}

// CanTransitionTo reports whether a decision may move s to next. The absent
// status behaves as pending.
func (s ApprovalStatus) CanTransitionTo(next ApprovalStatus) bool {
	for _, allowed := range validApprovalTransitions[s.Normalize()] {
		if allowed == next {
			return true
		}
	}
	return false
}
