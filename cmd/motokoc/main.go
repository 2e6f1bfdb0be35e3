// Command motokoc compiles a typed, actor-oriented IR program into a
// WebAssembly module targeting a canister execution environment.
package main

import (
	"fmt"
	"os"

	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/codegen"
	"github.com/Japan-DfinityInfoHub/motoko-sub000/internal/ir"
)

var (
	outputPath    string
	compilerDebug bool
	semispaceWords int = 1 << 16
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [-o output.wasm] [-debug] [-semispace-words N] <module.json>\n", os.Args[0])
		os.Exit(1)
	}

	outputPath = "output.wasm"
	var entryFiles []string
	i := 1
	for i < len(os.Args) {
		switch {
		case os.Args[i] == "-o" && i+1 < len(os.Args):
			outputPath = os.Args[i+1]
			i += 2
		case os.Args[i] == "-debug":
			compilerDebug = true
			i++
		case os.Args[i] == "-semispace-words" && i+1 < len(os.Args):
			fmt.Sscanf(os.Args[i+1], "%d", &semispaceWords)
			i += 2
		default:
			entryFiles = append(entryFiles, os.Args[i])
			i++
		}
	}

	if len(entryFiles) == 0 {
		fmt.Fprintln(os.Stderr, "motokoc: no input files")
		os.Exit(1)
	}

	if err := run(entryFiles); err != nil {
		fmt.Fprintf(os.Stderr, "motokoc: %v\n", err)
		os.Exit(1)
	}
}

// run compiles a single actor program loaded (by an external front end,
// out of scope here per spec §1) into the ir package's node types, and
// writes the resulting wasm binary to outputPath.
func run(entryFiles []string) error {
	if len(entryFiles) != 1 {
		return fmt.Errorf("exactly one already-typechecked IR module is supported per invocation")
	}

	prog, err := loadIRModule(entryFiles[0])
	if err != nil {
		return fmt.Errorf("loading %s: %w", entryFiles[0], err)
	}

	c := codegen.NewCompilerWithSemispace(int32(semispaceWords))

	if compilerDebug {
		fmt.Fprintf(os.Stderr, "motokoc: compiling actor with %d public fields\n", len(prog.ActorFields))
	}

	if err := codegen.CompileActor(c.Env, prog.ActorFields, prog.Init, c.CompileExpr); err != nil {
		return fmt.Errorf("compiling actor body: %w", err)
	}

	mod, err := c.Env.Finish()
	if err != nil {
		return fmt.Errorf("finishing module: %w", err)
	}

	out := mod.Encode()
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	if compilerDebug {
		fmt.Fprintf(os.Stderr, "motokoc: wrote %d bytes to %s\n", len(out), outputPath)
	}
	return nil
}

// irProgram is the top-level unit this command expects its (external,
// already-typechecked) front end to have produced.
type irProgram struct {
	ActorFields []ir.ActorFieldInit
	Init        *ir.Expr
}

// loadIRModule is a placeholder entry point for whatever serialized IR
// format the front end emits; this backend's job starts once that IR is
// in memory as ir.Expr/ir.Decl trees (spec §1's external-frontend
// boundary), so no concrete parser lives here.
func loadIRModule(path string) (*irProgram, error) {
	return nil, fmt.Errorf("IR module loading is provided by an external front end, not this backend (%s)", path)
}
