package topology

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	tokenPort = iota
	tokenRxCore
	tokenTxCore
	tokenKThreads

	// maxTokens bounds the number of tokens looked at in a single group,
	// tokens beyond that are ignored.
	maxTokens = tokenKThreads + MaxKernelThreads
)

// Parse fills the table from the configuration string:
//
//	(port,rx_core,tx_core[,kthread_core...])[,(port,rx_core,tx_core[,kthread_core...])]
//
// Numbers are unsigned integers in decimal, "0x" hex or "0" octal notation.
//
// On failure the table is left empty and a *ParseError is returned.
func (m *Table) Parse(s string) error {
	if m.frozen {
		return ErrTableFrozen
	}

	if err := m.parse(s); err != nil {
		m.clear()
		return err
	}

	return nil
}

func (m *Table) parse(s string) error {
	rest := s

	for group := 0; m.count < len(m.slots); group++ {
		open := strings.IndexByte(rest, '(')
		if open < 0 {
			return nil
		}
		rest = rest[open+1:]

		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return &ParseError{Group: group, Text: rest, Err: ErrUnbalancedGroup}
		}
		body := rest[:end]
		rest = rest[end+1:]

		assignment, err := m.parseGroup(body)
		if err != nil {
			return &ParseError{Group: group, Text: body, Err: err}
		}

		m.slots[assignment.PortID] = assignment
		m.count++
	}

	return nil
}

func (m *Table) parseGroup(body string) (*PortAssignment, error) {
	if len(body) >= MaxGroupLen {
		return nil, ErrGroupTooLong
	}

	tokens := strings.Split(body, ",")
	if len(tokens) <= tokenTxCore {
		return nil, fmt.Errorf("got %d: %w", len(tokens), ErrTooFewTokens)
	}
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}

	values := make([]uint32, len(tokens))
	for idx, token := range tokens {
		v, err := parseNumber(token)
		if err != nil {
			return nil, err
		}
		values[idx] = v
	}

	port := values[tokenPort]
	if port >= m.limits.MaxPorts {
		return nil, fmt.Errorf("port %d, must be less than %d: %w", port, m.limits.MaxPorts, ErrPortOutOfRange)
	}
	if m.slots[port] != nil {
		return nil, fmt.Errorf("port %d: %w", port, ErrDuplicatePort)
	}

	assignment := &PortAssignment{
		PortID: port,
		RxCore: values[tokenRxCore],
		TxCore: values[tokenTxCore],
	}

	// The rx bound is inclusive while the tx bound is not.
	if assignment.RxCore > m.limits.MaxCores || assignment.TxCore >= m.limits.MaxCores {
		return nil, fmt.Errorf(
			"rx core %d or tx core %d for port %d, max core count is %d: %w",
			assignment.RxCore,
			assignment.TxCore,
			port,
			m.limits.MaxCores,
			ErrCoreOutOfRange,
		)
	}

	kthreads := values[tokenKThreads:]
	for idx, core := range kthreads {
		if core >= m.limits.MaxCores {
			return nil, fmt.Errorf(
				"kernel thread #%d core %d for port %d, max core count is %d: %w",
				idx,
				core,
				port,
				m.limits.MaxCores,
				ErrCoreOutOfRange,
			)
		}
	}
	if len(kthreads) > 0 {
		assignment.KThreadCores = append([]uint32(nil), kthreads...)
	}

	return assignment, nil
}

func parseNumber(token string) (uint32, error) {
	token = strings.TrimSpace(token)

	v, err := strconv.ParseUint(token, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", token, ErrInvalidNumericToken)
	}

	return uint32(v), nil
}
