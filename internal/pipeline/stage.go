package pipeline

import (
	"fmt"
	"strings"

	"github.com/thruflo/loom/internal/config"
)

// Stage names one step of the instrumentation sequence. The values of the
// five run stages are their ordinal positions.
type Stage int

const (
	StageClone Stage = iota + 1
	StageInjectHook
	StageInline
	StageCodegen
	StageLink

	// StageCompileFix is the single stage run by CompileFix. It is not
	// part of the instrumentation sequence.
	StageCompileFix
)

// NumStages is the length of the instrumentation sequence.
const NumStages = 5

func (s Stage) String() string {
	switch s {
	case StageClone:
		return "clone"
	case StageInjectHook:
		return "inject-hook"
	case StageInline:
		return "inline"
	case StageCodegen:
		return "codegen"
	case StageLink:
		return "link"
	case StageCompileFix:
		return "compile-fix"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Description is the human-readable text of the stage's status line.
func (s Stage) Description() string {
	switch s {
	case StageClone:
		return "cloning all functions in the program"
	case StageInjectHook:
		return "injecting hook functions"
	case StageInline:
		return "generating the all-in-one bitcode"
	case StageCodegen:
		return "generating the assembly"
	case StageLink:
		return "generating the executable"
	case StageCompileFix:
		return "compiling the fix description"
	default:
		return s.String()
	}
}

// Toolchain names the external programs and support files the stages use.
type Toolchain struct {
	Opt  string
	LLC  string
	Link string
	CC   string
	CXX  string

	// Plugins are loaded into opt for the clone and inject-hook stages.
	Plugins []string
	// CompilePlugins are loaded into opt for CompileFix.
	CompilePlugins []string

	// Stub is the runtime stub merged by the inline stage.
	Stub string
	// Runtime is the support object linked into every executable.
	Runtime string
}

// DefaultToolchain resolves every program through PATH and has no
// plugins or support files.
func DefaultToolchain() Toolchain {
	return ToolchainFromConfig(config.DefaultPipeline())
}

// ToolchainFromConfig converts the pipeline section of the config file.
func ToolchainFromConfig(p config.Pipeline) Toolchain {
	return Toolchain{
		Opt:            p.Opt,
		LLC:            p.LLC,
		Link:           p.Link,
		CC:             p.CC,
		CXX:            p.CXX,
		Plugins:        append([]string(nil), p.Plugins...),
		CompilePlugins: append([]string(nil), p.CompilePlugins...),
		Stub:           p.Stub,
		Runtime:        p.Runtime,
	}
}

func loadArgs(plugins []string) []string {
	args := make([]string, 0, 2*len(plugins))
	for _, p := range plugins {
		args = append(args, "-load", p)
	}
	return args
}

// Invocation is one planned external process.
type Invocation struct {
	Stage   Stage
	Program string
	Args    []string

	// Stdin, when set, is a file connected to the process's standard input.
	Stdin string
	// Stdout, when set, is a file the process's standard output is
	// written to. Otherwise output lines are streamed to the logger.
	Stdout string

	Input  Artifact
	Output Artifact

	// Skipped marks a stage that is planned but not run; its output is
	// its input.
	Skipped bool
}

// CommandLine renders the invocation the way a shell user would type it.
func (inv Invocation) CommandLine() string {
	if inv.Skipped {
		return "(skipped)"
	}
	var b strings.Builder
	b.WriteString(inv.Program)
	for _, a := range inv.Args {
		b.WriteByte(' ')
		b.WriteString(a)
	}
	if inv.Stdin != "" {
		b.WriteString(" < ")
		b.WriteString(inv.Stdin)
	}
	if inv.Stdout != "" {
		b.WriteString(" > ")
		b.WriteString(inv.Stdout)
	}
	return b.String()
}

// IntermediatePath is where stage s of a run over input writes its
// artifact. Only the bitcode stages and codegen have one.
func IntermediatePath(input string, s Stage) string {
	switch s {
	case StageClone, StageInjectHook, StageInline:
		return fmt.Sprintf("%s%d", input, int(s))
	case StageCodegen:
		return fmt.Sprintf("%s%d.s", input, int(s))
	default:
		return ""
	}
}

func optStage(tools Toolchain, s Stage, pass string, in Artifact, input string) Invocation {
	out := Artifact{Kind: Bitcode, Stage: s, Path: IntermediatePath(input, s)}
	args := append([]string{"-o", out.Path}, loadArgs(tools.Plugins)...)
	args = append(args, pass)
	return Invocation{
		Stage:   s,
		Program: tools.Opt,
		Args:    args,
		Stdin:   in.Path,
		Input:   in,
		Output:  out,
	}
}

// plan builds the five invocations of a run. Each stage's input is the
// previous stage's output; a skipped inline stage passes the
// inject-hook artifact through untouched.
func plan(input, output string, opts Options) []Invocation {
	tools := opts.Tools
	start := Artifact{Kind: Bitcode, Path: input}

	clone := optStage(tools, StageClone, "-clone-func", start, input)
	hook := optStage(tools, StageInjectHook, "-inject-hook", clone.Output, input)

	inline := Invocation{Stage: StageInline, Input: hook.Output, Output: hook.Output, Skipped: true}
	if opts.Inline {
		out := Artifact{Kind: Bitcode, Stage: StageInline, Path: IntermediatePath(input, StageInline)}
		inline = Invocation{
			Stage:   StageInline,
			Program: tools.Link,
			Args:    []string{"-o", out.Path, hook.Output.Path, tools.Stub},
			Input:   hook.Output,
			Output:  out,
		}
	}

	asm := Artifact{Kind: Assembly, Stage: StageCodegen, Path: IntermediatePath(input, StageCodegen)}
	codegen := Invocation{
		Stage:   StageCodegen,
		Program: tools.LLC,
		Args:    []string{"-f", inline.Output.Path, "-o", asm.Path},
		Input:   inline.Output,
		Output:  asm,
	}

	exe := Artifact{Kind: Executable, Stage: StageLink, Path: output}
	linkArgs := append([]string{"-o", exe.Path, asm.Path, tools.Runtime}, opts.LinkArgs...)
	link := Invocation{
		Stage:   StageLink,
		Program: opts.Language.driver(tools),
		Args:    linkArgs,
		Input:   asm,
		Output:  exe,
	}

	return []Invocation{clone, hook, inline, codegen, link}
}
