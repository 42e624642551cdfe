package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/gmcore/gmdata/gm"
	"github.com/gmcore/gmdata/gm/asm"
)

func loadData(c *Cmd) (*gm.Data, error) {
	path := c.args[1]
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Size() > c.env.MaxFileSize {
		return nil, fmt.Errorf("%s: file size %d exceeds GMDATA_MAX_FILE_SIZE %d", path, fi.Size(), c.env.MaxFileSize)
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := gm.Parse(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

func infoCmd(_ context.Context, stdio mainer.Stdio, c *Cmd) error {
	data, err := loadData(c)
	if err != nil {
		return err
	}
	g := data.General

	str := func(r gm.Ref[string]) string {
		s, err := data.ResolveString(r)
		if err != nil {
			return "<dangling>"
		}
		return s
	}

	fmt.Fprintf(stdio.Stdout, "General Info:\n")
	fmt.Fprintf(stdio.Stdout, "  Debugger Disabled: %t\n", g.DebuggerDisabled)
	fmt.Fprintf(stdio.Stdout, "  Bytecode Version:  %d\n", g.BytecodeVersion)
	fmt.Fprintf(stdio.Stdout, "  File Name:         %s\n", str(g.FileName))
	fmt.Fprintf(stdio.Stdout, "  Config:            %s\n", str(g.Config))
	fmt.Fprintf(stdio.Stdout, "  Game ID:           %d\n", g.GameID)
	fmt.Fprintf(stdio.Stdout, "  Game Name:         %s\n", str(g.Name))
	fmt.Fprintf(stdio.Stdout, "  Display Name:      %s\n", str(g.DisplayName))
	fmt.Fprintf(stdio.Stdout, "  Version (GEN8):    %s\n", g.RawVersion)
	fmt.Fprintf(stdio.Stdout, "  Version (detected): %s (%s)\n", data.Version, data.Version.Branch)
	fmt.Fprintf(stdio.Stdout, "  YYC:               %t\n", data.YYC)
	fmt.Fprintf(stdio.Stdout, "\nChunks:\n")
	for _, tag := range data.Directory().Order() {
		rng, _ := data.Directory().Get(tag)
		fmt.Fprintf(stdio.Stdout, "  %s  %8d bytes at %d\n", tag, rng.Len(), rng.Start)
	}
	fmt.Fprintf(stdio.Stdout, "\nResources:\n")
	fmt.Fprintf(stdio.Stdout, "  Strings:       %d\n", len(data.Strings))
	fmt.Fprintf(stdio.Stdout, "  Variables:     %d\n", len(data.Variables))
	fmt.Fprintf(stdio.Stdout, "  Functions:     %d\n", len(data.Functions))
	fmt.Fprintf(stdio.Stdout, "  Code entries:  %d\n", len(data.Codes))
	fmt.Fprintf(stdio.Stdout, "  Texture pages: %d\n", len(data.TexturePages))
	fmt.Fprintf(stdio.Stdout, "  Page items:    %d\n", len(data.PageItems))
	return nil
}

func verifyCmd(_ context.Context, stdio mainer.Stdio, c *Cmd) error {
	data, err := loadData(c)
	if err != nil {
		return err
	}
	ok, offset, err := data.RoundTrips()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: re-encoded output differs from input at offset %d", c.args[1], offset)
	}
	fmt.Fprintf(stdio.Stdout, "%s: byte-identical round trip\n", c.args[1])
	return nil
}

func dasmCmd(_ context.Context, stdio mainer.Stdio, c *Cmd) error {
	data, err := loadData(c)
	if err != nil {
		return err
	}

	dump := func(code *gm.Code) error {
		out, err := asm.Dasm(data, code)
		if err != nil {
			return err
		}
		_, err = stdio.Stdout.Write(append(out, '\n'))
		return err
	}

	if len(c.args) >= 3 {
		code, err := data.CodeByName(c.args[2])
		if err != nil {
			return err
		}
		return dump(code)
	}
	for i := range data.Codes {
		if err := dump(&data.Codes[i]); err != nil {
			return err
		}
	}
	return nil
}
