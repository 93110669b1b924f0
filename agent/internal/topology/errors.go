package topology

import (
	"errors"
	"fmt"
)

var (
	ErrConfigSyntax        = errors.New("config syntax error")
	ErrUnbalancedGroup     = fmt.Errorf("missing closing parenthesis: %w", ErrConfigSyntax)
	ErrGroupTooLong        = fmt.Errorf("group does not fit %d bytes: %w", MaxGroupLen, ErrConfigSyntax)
	ErrTooFewTokens        = fmt.Errorf("expected at least port, rx core and tx core: %w", ErrConfigSyntax)
	ErrInvalidNumericToken = fmt.Errorf("invalid numeric token: %w", ErrConfigSyntax)

	ErrDuplicatePort  = errors.New("port is configured more than once")
	ErrPortOutOfRange = errors.New("port id is out of range")
	ErrCoreOutOfRange = errors.New("core id is out of range")

	ErrTableFrozen       = errors.New("topology table is frozen")
	ErrPortNotConfigured = errors.New("port is enabled in the port mask but not configured")
	ErrCoreNotEnabled    = errors.New("core is not enabled")
)

// ParseError describes the group that failed to parse.
type ParseError struct {
	// Group is the zero-based index of the failed group.
	Group int
	// Text is the raw interior of the group.
	Text string
	Err  error
}

func (m *ParseError) Error() string {
	return fmt.Sprintf("group #%d (%s): %v", m.Group, m.Text, m.Err)
}

func (m *ParseError) Unwrap() error {
	return m.Err
}
