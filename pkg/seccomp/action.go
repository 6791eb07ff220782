package seccomp

// Action is the seccomp filter action taken for a matched or unmatched
// syscall
type Action uint32

// Action defines the seccomp action to the syscall
// default value 0 is invalid
const (
	ActionAllow Action = iota + 1
	ActionErrno
	ActionTrap
	ActionLog
	ActionTrace
	ActionKillThread
	ActionKillProcess
)

// Kernel return values for seccomp filter programs. These are part of the
// stable seccomp ABI and identical on every architecture.
const (
	retKillProcess = 0x80000000
	retKillThread  = 0x00000000
	retTrap        = 0x00030000
	retErrno       = 0x00050000
	retTrace       = 0x7ff00000
	retLog         = 0x7ffc0000
	retAllow       = 0x7fff0000
	retDataMask    = 0x0000ffff
)

// WithReturnCode set the return code when action is errno or trace
func (a Action) WithReturnCode(code int16) Action {
	return a.Action() | Action(code)<<16
}

// ReturnCode get the return code
func (a Action) ReturnCode() int16 {
	return int16(a >> 16)
}

// Action get the basic action
func (a Action) Action() Action {
	return Action(a & 0xffff)
}

// KernelReturn converts the action into the return value understood by the
// kernel's seccomp filter evaluator, including the 16-bit data payload for
// errno and trace actions.
func (a Action) KernelReturn() uint32 {
	data := uint32(uint16(a.ReturnCode())) & retDataMask
	switch a.Action() {
	case ActionAllow:
		return retAllow
	case ActionErrno:
		return retErrno | data
	case ActionTrap:
		return retTrap | data
	case ActionLog:
		return retLog
	case ActionTrace:
		return retTrace | data
	case ActionKillThread:
		return retKillThread
	default:
		return retKillProcess
	}
}

func (a Action) String() string {
	switch a.Action() {
	case ActionAllow:
		return "allow"
	case ActionErrno:
		return "errno"
	case ActionTrap:
		return "trap"
	case ActionLog:
		return "log"
	case ActionTrace:
		return "trace"
	case ActionKillThread:
		return "kill_thread"
	case ActionKillProcess:
		return "kill_process"
	default:
		return "invalid"
	}
}
