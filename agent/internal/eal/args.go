package eal

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/yanet-platform/kniagent/common/go/bitset"
)

// Args are runtime arguments recognized by Init.
type Args struct {
	// Cores is the set of enabled cores, from "-l" or "-c".
	Cores *bitset.TinyBitset
	// MainCore is the coordinating core, from "--main-lcore".
	MainCore *uint32
	// MemoryChannels is the "-n" value, recorded only.
	MemoryChannels int
	// FilePrefix is the "--file-prefix" value, recorded only.
	FilePrefix string
	// Ignored are options accepted for compatibility but without effect.
	Ignored []string
}

// coreListValue is a pflag.Value for "1,2-4" core lists.
type coreListValue struct {
	dst **bitset.TinyBitset
}

func (m *coreListValue) Set(value string) error {
	cores, err := bitset.ParseList(value)
	if err != nil {
		return fmt.Errorf("invalid core list: %w", err)
	}
	*m.dst = &cores
	return nil
}

func (m *coreListValue) String() string {
	if *m.dst == nil {
		return ""
	}
	return (*m.dst).String()
}

func (m *coreListValue) Type() string {
	return "corelist"
}

// coreMaskValue is a pflag.Value for hexadecimal core masks.
type coreMaskValue struct {
	dst **bitset.TinyBitset
}

func (m *coreMaskValue) Set(value string) error {
	cores, err := bitset.ParseHexMask(value)
	if err != nil {
		return fmt.Errorf("invalid core mask: %w", err)
	}
	*m.dst = &cores
	return nil
}

func (m *coreMaskValue) String() string {
	if *m.dst == nil {
		return ""
	}
	return (*m.dst).String()
}

func (m *coreMaskValue) Type() string {
	return "coremask"
}

// ignoredValue accepts any value and records the option name.
type ignoredValue struct {
	name string
	typ  string
	args *Args
}

func (m *ignoredValue) Set(string) error {
	m.args.Ignored = append(m.args.Ignored, "--"+m.name)
	return nil
}

func (m *ignoredValue) String() string {
	return ""
}

func (m *ignoredValue) Type() string {
	return m.typ
}

func newFlagSet(out *Args, mainCore *uint32) *pflag.FlagSet {
	fs := pflag.NewFlagSet("eal", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)

	fs.VarP(&coreListValue{dst: &out.Cores}, "core-list", "l", "List of cores to run on")
	fs.VarP(&coreMaskValue{dst: &out.Cores}, "core-mask", "c", "Hexadecimal bitmask of cores to run on")
	fs.Uint32Var(mainCore, "main-lcore", 0, "Core used as the main one")
	fs.Uint32Var(mainCore, "master-lcore", 0, "Deprecated alias of --main-lcore")
	fs.IntVarP(&out.MemoryChannels, "memory-channels", "n", 0, "Number of memory channels")
	fs.StringVar(&out.FilePrefix, "file-prefix", "", "Prefix for runtime files")

	for _, opt := range []struct {
		name      string
		shorthand string
	}{
		{"memory", "m"},
		{"socket-mem", ""},
		{"proc-type", ""},
		{"allow", "a"},
		{"block", "b"},
		{"driver", "d"},
		{"memory-ranks", "r"},
	} {
		fs.VarP(&ignoredValue{name: opt.name, typ: "string", args: out}, opt.name, opt.shorthand, "Ignored")
	}
	for _, opt := range []struct {
		name      string
		shorthand string
	}{
		{"no-huge", ""},
		{"no-pci", ""},
		{"version", "v"},
	} {
		flag := fs.VarPF(&ignoredValue{name: opt.name, typ: "bool", args: out}, opt.name, opt.shorthand, "Ignored")
		flag.NoOptDefVal = "true"
	}

	return fs
}

// ParseArgs parses runtime arguments from the beginning of args.
//
// Parsing stops after "--", which is consumed, or before the first
// positional argument. The number of consumed arguments is returned along
// with the result.
func ParseArgs(args []string) (*Args, int, error) {
	out := &Args{}
	mainCore := uint32(0)

	fs := newFlagSet(out, &mainCore)
	if err := fs.Parse(args); err != nil {
		return nil, 0, err
	}

	if fs.Changed("main-lcore") || fs.Changed("master-lcore") {
		out.MainCore = &mainCore
	}
	if fs.Changed("memory-channels") && out.MemoryChannels <= 0 {
		return nil, 0, fmt.Errorf("invalid number of memory channels %d", out.MemoryChannels)
	}

	return out, len(args) - len(fs.Args()), nil
}
