package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"lpfx.dev/go/lpfx/compiler"
	"lpfx.dev/go/lpfx/emu"
	"lpfx.dev/go/lpfx/qmath"
)

func main() {
	checkCmd := &cli.Command{
		Name:   "check",
		Action: checkAct,
		Args:   cli.Args{},
	}

	compileCmd := &cli.Command{
		Name:   "compile",
		Action: compileAct,
		Args:   cli.Args{},
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "run FILE FUNC [ARGS...] compiles FILE and calls FUNC with fixed-point arguments",
		Action:      runAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "lpfx",
		Description: "lpfx compiles GLSL-subset patterns to fixed-point rv32 code",
		Commands: []*cli.Command{
			checkCmd,
			compileCmd,
			runCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func checkAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		err = compiler.Check(ctx, a, text)
		if err != nil {
			return errors.Wrap(err, "%v", a)
		}
	}

	return nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		res, err := compiler.CompileFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		out := strings.TrimSuffix(a, ".glsl") + ".o"

		err = os.WriteFile(out, res.Object, 0o644)
		if err != nil {
			return errors.Wrap(err, "write %v", out)
		}

		fmt.Printf("%s: %d bytes of text, %d functions\n", out, len(res.Image.Text), len(res.Image.Symbols))
	}

	return nil
}

func runAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	if len(c.Args) < 2 {
		return errors.New("usage: run FILE FUNC [ARGS...]")
	}

	file, fn := c.Args[0], c.Args[1]

	res, err := compiler.CompileFile(ctx, file)
	if err != nil {
		return errors.Wrap(err, "compile %v", file)
	}

	_, f := res.Module.FuncByName(fn)
	if f == nil {
		return errors.New("no function %v in %v", fn, file)
	}

	args := make([]uint32, 0, len(c.Args)-2)

	for _, a := range c.Args[2:] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return errors.Wrap(err, "argument %v", a)
		}

		args = append(args, uint32(qmath.FromFloat(v)))
	}

	e := emu.New(res.Image, 0)

	out, err := e.CallCompiled(ctx, fn, f.Sig, args)
	if err != nil {
		return errors.Wrap(err, "run %v", fn)
	}

	for _, w := range out {
		fmt.Printf("%v\n", qmath.Q32(w).Float())
	}

	return nil
}
