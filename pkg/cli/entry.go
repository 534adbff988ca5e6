// Package cli implements the velox command line entry point.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	"github.com/veloxvm/velox/internal/config"
	"github.com/veloxvm/velox/internal/dap"
	"github.com/veloxvm/velox/internal/vm"
)

type options struct {
	programPath string
	disassemble bool
	dapServe    bool
	dapPort     int
	verbosity   int
}

// Run parses arguments and executes; the return value is the process exit
// code (0 ok, 1 runtime error, 2 usage error).
func Run(args []string) int {
	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n\n", err)
		printUsage(os.Stderr)
		return config.ExitUsage
	}

	cfg := config.Discover()
	if opts.verbosity > cfg.Verbosity {
		cfg.Verbosity = opts.verbosity
	}
	if opts.dapPort != 0 {
		cfg.DAPPort = opts.dapPort
	}
	commonlog.Configure(cfg.Verbosity, nil)

	if opts.dapServe && opts.programPath == "" {
		return serveDAP(nil, cfg)
	}

	data, err := os.ReadFile(opts.programPath)
	if err != nil {
		errorf("cannot read %s: %s", opts.programPath, err)
		return config.ExitError
	}

	prog, err := vm.Load(data)
	if err != nil {
		errorf("cannot load %s: %s", opts.programPath, err)
		return config.ExitError
	}

	if opts.disassemble {
		fmt.Print(vm.Disassemble(prog, opts.programPath))
		return config.ExitOK
	}

	if opts.dapServe {
		return serveDAP(prog, cfg)
	}

	machine := vm.New(prog, cfg)
	defer machine.Close()

	result, err := machine.Run()
	if err != nil {
		errorf("%s", err)
		if fault, ok := err.(*vm.Fault); ok && fault.Dump != "" {
			fmt.Fprint(os.Stderr, fault.Dump)
		}
		return config.ExitError
	}

	if !result.IsNull() {
		fmt.Println(result.Inspect())
	}
	return config.ExitOK
}

// serveDAP blocks serving debugger clients; prog may be nil, in which case
// clients upload bytecode themselves.
func serveDAP(prog *vm.Program, cfg *config.Config) int {
	server := dap.NewServer(prog, cfg)
	server.OnConnect = func(count int) {
		fmt.Fprintf(os.Stderr, "client attached (%d active)\n", count)
	}
	if err := server.Listen(cfg.DAPPort); err != nil {
		errorf("%s", err)
		return config.ExitError
	}
	fmt.Fprintf(os.Stderr, "velox debug adapter listening on %s\n", server.Addr())
	select {} // serve until killed
}

func parseArgs(args []string) (*options, error) {
	opts := &options{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-d" || arg == "--disasm":
			opts.disassemble = true
		case arg == "--dap":
			opts.dapServe = true
		case arg == "--dap-port":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--dap-port requires a value")
			}
			port, err := strconv.Atoi(args[i+1])
			if err != nil || port <= 0 || port > 65535 {
				return nil, fmt.Errorf("bad --dap-port value %q", args[i+1])
			}
			opts.dapPort = port
			opts.dapServe = true
			i++
		case arg == "-v" || arg == "--verbose":
			opts.verbosity++
		case arg == "-h" || arg == "--help":
			printUsage(os.Stdout)
			os.Exit(config.ExitOK)
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown flag %s", arg)
		default:
			if opts.programPath != "" {
				return nil, fmt.Errorf("unexpected argument %s", arg)
			}
			opts.programPath = arg
		}
	}
	if opts.programPath == "" && !opts.dapServe {
		return nil, fmt.Errorf("no bytecode file given")
	}
	if opts.programPath != "" && !strings.HasSuffix(opts.programPath, config.BytecodeFileExt) {
		// accepted, but worth flagging
		fmt.Fprintf(os.Stderr, "warning: %s does not have the %s extension\n",
			opts.programPath, config.BytecodeFileExt)
	}
	return opts, nil
}

func printUsage(w *os.File) {
	fmt.Fprintf(w, `Usage: velox [flags] <program%s>

Flags:
  -d, --disasm        print a disassembly listing instead of running
      --dap           serve the Debug Adapter Protocol instead of running
      --dap-port <n>  DAP port (default %d, implies --dap)
  -v, --verbose       increase log verbosity (repeatable)
  -h, --help          show this help

With --dap and no program, clients supply bytecode via uploadBytecode.
`, config.BytecodeFileExt, config.DefaultDAPPort)
}

// errorf writes a colored error line when stderr is a terminal.
func errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		fmt.Fprintf(os.Stderr, "\x1b[31merror:\x1b[0m %s\n", msg)
	} else {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
}
