package model

// DisputeState 存取款记录的争议状态
type DisputeState string

const (
	DisputeStateNormal      DisputeState = "NORMAL"
	DisputeStateDisputed    DisputeState = "DISPUTED"
	DisputeStateResolved    DisputeState = "RESOLVED"
	DisputeStateChargedBack DisputeState = "CHARGED_BACK"
)

// ValidDisputeTransitions 争议状态机
//
//	NORMAL -> DISPUTED -> RESOLVED
//	                   -> CHARGED_BACK
//
// RESOLVED 和 CHARGED_BACK 为终态，已解决的记录不能再次发起争议。
var ValidDisputeTransitions = map[DisputeState][]DisputeState{
	DisputeStateNormal:   {DisputeStateDisputed},
	DisputeStateDisputed: {DisputeStateResolved, DisputeStateChargedBack},
}

func CanTransitionTo(currentState, targetState DisputeState) bool {
	allowedStates, exists := ValidDisputeTransitions[currentState]
	if !exists {
		return false
	}
	for _, s := range allowedStates {
		if s == targetState {
			return true
		}
	}
	return false
}

// IsTerminal 终态不再接受任何争议类操作
func (s DisputeState) IsTerminal() bool {
	_, exists := ValidDisputeTransitions[s]
	return !exists
}
