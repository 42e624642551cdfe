// Package maincmd implements the gmdata command-line tool: thin
// collaborators over the core library for inspecting, verifying and
// disassembling data.win files.
package maincmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/mna/mainer"
)

const binName = "gmdata"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> <path> [<name>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> <path> [<name>]
       %[1]s -h|--help
       %[1]s -v|--version

Inspection and verification tool for GameMaker data.win files.

The <command> can be one of:
       info                      Print general information about the
                                 data file (GEN8 summary, chunk layout,
                                 resource counts).
       verify                    Decode the data file, re-encode it and
                                 compare the result byte for byte.
       dasm                      Print the disassembly of the code entry
                                 <name>, or of every entry if no name is
                                 given.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.

Environment:
       GMDATA_MAX_FILE_SIZE      Refuse input files larger than this
                                 many bytes (default 1 GiB).
`, binName)
)

// EnvConfig is read from the environment on startup.
type EnvConfig struct {
	MaxFileSize int64 `env:"GMDATA_MAX_FILE_SIZE" envDefault:"1073741824"`
}

type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	env   EnvConfig
	args  []string
	cmdFn func(context.Context, mainer.Stdio, *Cmd) error
}

func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	commands := map[string]func(context.Context, mainer.Stdio, *Cmd) error{
		"info":   infoCmd,
		"verify": verifyCmd,
		"dasm":   dasmCmd,
	}
	c.cmdFn = commands[c.args[0]]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", c.args[0])
	}
	if len(c.args) < 2 {
		return fmt.Errorf("%s: a data file must be provided", c.args[0])
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s (%s)\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	if err := env.Parse(&c.env); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid environment: %s\n", err)
		return mainer.InvalidArgs
	}

	if err := c.cmdFn(context.Background(), stdio, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return mainer.Failure
	}
	return mainer.Success
}
