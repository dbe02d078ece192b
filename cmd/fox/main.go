package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/foxlang/fox/internal/foxconfig"
	"github.com/foxlang/fox/internal/vm"
)

// Exit codes (spec.md §6).
const (
	exitOK           = 0
	exitUsage        = -1
	exitCompileError = -2
	exitRuntimeError = -3
	exitIOError      = -4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 2 && args[0] == "-disasm" {
		return runDisasm(args[1])
	}
	switch len(args) {
	case 0:
		return runREPL()
	case 1:
		return runFile(args[0])
	default:
		fmt.Fprintln(os.Stderr, "usage: fox [-disasm] [script]")
		return exitUsage
	}
}

// runDisasm compiles path without executing it and dumps its bytecode
// (debug tooling, spec.md §1's "deliberately out of scope" collaborators).
func runDisasm(path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fox: %v\n", err)
		return exitIOError
	}
	machine := vm.NewVM(path, filepath.Dir(path), nil)
	fn, err := machine.CompileOnly(string(src))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return exitCompileError
	}
	vm.DisassembleChunk(os.Stdout, path, fn.Chunk, "script")
	return exitOK
}

func runFile(path string) int {
	path = filepath.FromSlash(strings.ReplaceAll(path, `\`, `/`))
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fox: %v\n", err)
		return exitIOError
	}

	cfg, err := foxconfig.FindNear(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fox: %v\n", err)
		return exitIOError
	}

	machine := vm.NewVM(path, filepath.Dir(path), toVMConfig(cfg))
	result, ierr := machine.Interpret(string(src))
	return resultToExitCode(result, ierr, machine)
}

// runREPL reads lines until EOF/SIGINT, feeding each line to a fresh
// Interpret call with filename "<script>" (spec.md §6). Each line shares one
// long-lived VM so globals and classes persist across lines, the way a REPL
// built on the teacher's evaluator.NewEnvironment() keeps one env per session.
func runREPL() int {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)

	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())

	machine := vm.NewVM("<script>", ".", nil)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		if interactive {
			fmt.Fprint(os.Stdout, "> ")
		}
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stdout)
			return exitOK
		case line, ok := <-lines:
			if !ok {
				return exitOK
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			result, err := machine.Interpret(line)
			if result != vm.ResultOK && err != nil {
				fmt.Fprintln(os.Stderr, err.Error())
			}
		}
	}
}

func resultToExitCode(result vm.InterpretResult, err error, machine *vm.VM) int {
	switch result {
	case vm.ResultOK:
		return exitOK
	case vm.ResultCompileError:
		fmt.Fprintln(os.Stderr, err.Error())
		return exitCompileError
	case vm.ResultRuntimeError:
		reportRuntimeError(machine, err)
		return exitRuntimeError
	default:
		fmt.Fprintln(os.Stderr, err.Error())
		return exitRuntimeError
	}
}

func reportRuntimeError(machine *vm.VM, err error) {
	if re, ok := err.(*vm.RuntimeError); ok && re.Instance != nil {
		fmt.Fprintf(os.Stderr, "%s [vm %s]\n", re.Error(), machine.ID)
		return
	}
	fmt.Fprintf(os.Stderr, "%s [vm %s]\n", err.Error(), machine.ID)
}

func toVMConfig(cfg *foxconfig.Config) *vm.Config {
	if cfg == nil {
		return nil
	}
	return &vm.Config{
		InitialStackSize:  cfg.InitialStackSize,
		FramesMax:         cfg.FramesMax,
		GCHeapGrowFactor:  cfg.GCHeapGrowFactor,
		ModuleSearchPaths: cfg.ModuleSearchPaths,
	}
}
