package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanet-platform/kniagent/agent/internal/topology"
)

func Test_PortMaskDoesNotEnablePromiscuous(t *testing.T) {
	c := Cmd{}
	root := newRootCmd(&c)

	require.NoError(t, root.ParseFlags([]string{"-p", "0x3", "--config", "(0,1,2)"}))
	assert.Equal(t, "0x3", c.PortMask)
	assert.Equal(t, "(0,1,2)", c.Topology)
	assert.False(t, c.Promiscuous)

	c = Cmd{}
	root = newRootCmd(&c)

	require.NoError(t, root.ParseFlags([]string{"-P", "--config", "(0,1,2)"}))
	assert.True(t, c.Promiscuous)
	assert.Empty(t, c.PortMask)
}

func Test_MissingConfigPrintsUsage(t *testing.T) {
	c := Cmd{}
	root := newRootCmd(&c)

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs([]string{"-p", "0x1"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config")
	assert.Contains(t, out.String(), "Usage:")
	assert.NotContains(t, out.String(), "Error:")
}

func Test_RunRejectsDuplicatePort(t *testing.T) {
	err := run(Cmd{
		RuntimeArgs: []string{"-l", "0", "--"},
		Topology:    "(0,4,6),(0,5,7)",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, topology.ErrDuplicatePort))
}

func Test_RunRejectsUnconfiguredMaskedPort(t *testing.T) {
	err := run(Cmd{
		RuntimeArgs: []string{"-l", "0", "--"},
		PortMask:    "0x3",
		Topology:    "(0,0,0)",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, topology.ErrPortNotConfigured))
}

func Test_RunRejectsInvalidPortMask(t *testing.T) {
	err := run(Cmd{
		RuntimeArgs: []string{"-l", "0", "--"},
		PortMask:    "zz",
		Topology:    "(0,0,0)",
	})
	require.Error(t, err)
}

func Test_SplitArgs(t *testing.T) {
	runtimeArgs, appArgs, err := splitArgs([]string{"-l", "0", "--", "-p", "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-l", "0", "--"}, runtimeArgs)
	assert.Equal(t, []string{"-p", "1"}, appArgs)

	runtimeArgs, appArgs, err = splitArgs([]string{"-p", "1", "--config", "(0,1,2)"})
	require.NoError(t, err)
	assert.Empty(t, runtimeArgs)
	assert.Equal(t, []string{"-p", "1", "--config", "(0,1,2)"}, appArgs)

	_, _, err = splitArgs([]string{"-l", "0", "kni", "--", "-p", "1"})
	assert.Error(t, err)

	_, _, err = splitArgs([]string{"-x", "--", "-p", "1"})
	assert.Error(t, err)
}
