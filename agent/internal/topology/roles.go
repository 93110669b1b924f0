package topology

import "fmt"

// RoleKind is a duty a core performs for a port.
type RoleKind uint8

const (
	RoleRx RoleKind = iota
	RoleTx
	RoleKernelThread
)

func (m RoleKind) String() string {
	switch m {
	case RoleRx:
		return "rx"
	case RoleTx:
		return "tx"
	case RoleKernelThread:
		return "kthread"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Role is a single duty of a core.
type Role struct {
	Kind   RoleKind
	PortID uint32
	// KThreadIdx is the kernel-thread index, valid for RoleKernelThread only.
	KThreadIdx int
}

func (m Role) String() string {
	if m.Kind == RoleKernelThread {
		return fmt.Sprintf("%s#%d@port%d", m.Kind, m.KThreadIdx, m.PortID)
	}
	return fmt.Sprintf("%s@port%d", m.Kind, m.PortID)
}

// Roles returns the duties of the given core, ordered by port.
func (m *Table) Roles(core uint32) []Role {
	var out []Role

	for assignment := range m.Ports() {
		if assignment.RxCore == core {
			out = append(out, Role{Kind: RoleRx, PortID: assignment.PortID})
		}
		if assignment.TxCore == core {
			out = append(out, Role{Kind: RoleTx, PortID: assignment.PortID})
		}
		for idx, kcore := range assignment.KThreadCores {
			if kcore == core {
				out = append(out, Role{Kind: RoleKernelThread, PortID: assignment.PortID, KThreadIdx: idx})
			}
		}
	}

	return out
}
