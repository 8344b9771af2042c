// Command sbl is the SBL compiler/VM driver: lex, parse, resolve imports,
// compile to IR, resolve bake blocks, compile to bytecode, optimize, and run
// — or stop short of running with -c, or dump disassembled bytecode with -d.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alekratz/sbl/internal/cache"
	"github.com/alekratz/sbl/internal/config"
	"github.com/alekratz/sbl/internal/diag"
	"github.com/alekratz/sbl/internal/optimize"
	"github.com/alekratz/sbl/internal/pipeline"
	"github.com/alekratz/sbl/internal/vm"
	"github.com/dustin/go-humanize"
)

var logger = log.New(os.Stderr, "sbl: ", 0)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) >= 1 && args[0] == "cache" {
		return runCache(args[1:])
	}

	cfg, err := config.Load(config.RCFileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sbl: loading %s: %s\n", config.RCFileName, err)
		return 1
	}

	opts, sourcePath, argv, err := parseArgs(args, cfg.OptimizeFlagsOrDefault())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	searchPaths := []string{filepath.Dir(sourcePath)}
	searchPaths = append(searchPaths, cfg.SearchPaths...)
	searchPaths = append(searchPaths, config.SearchPathsFromEnv(os.Getenv("SBL_PATH"))...)
	searchPaths = append(searchPaths, config.DefaultSearchPaths...)

	bakeCache, err := cache.Open(bakeCachePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sbl: opening bake cache: %s\n", err)
		return 1
	}
	defer bakeCache.Close()

	pipeOpts := pipeline.Options{
		SearchPaths: searchPaths,
		Optimize:    opts.optimize,
		Out:         os.Stdout,
		Err:         os.Stderr,
		BakeCache:   bakeCache,
		Config:      cfg,
	}

	if opts.verbose {
		logger.Printf("compiling %s (search paths: %s)", sourcePath, strings.Join(searchPaths, string(os.PathListSeparator)))
	}

	start := time.Now()
	result, err := pipeline.Compile(sourcePath, pipeOpts)
	if opts.verbose {
		logger.Printf("compilation finished in %s", time.Since(start))
	}
	if err != nil {
		diag.Print(os.Stderr, err, diag.IsTerminal(os.Stderr))
		return 1
	}

	if opts.dump {
		fmt.Fprint(os.Stderr, vm.Disassemble(result.Table))
	}

	if opts.compileOnly {
		return 0
	}

	_ = argv // forwarded program arguments; no builtin currently reads them

	m := vm.New(result.Table)
	start = time.Now()
	if err := m.Run("main"); err != nil {
		diag.Print(os.Stderr, err, diag.IsTerminal(os.Stderr))
		return 1
	}
	if opts.verbose {
		logger.Printf("run finished in %s", time.Since(start))
	}
	return 0
}

type cliOptions struct {
	dump        bool
	compileOnly bool
	verbose     bool
	optimize    optimize.Flags
}

// parseArgs parses `sbl [flags] INPUT [-- ARGV...]`. Everything after a
// bare `--` is forwarded verbatim as the program's own argv. defaultOptimize
// (normally `.sblrc.yaml`'s optimizer settings, or optimize.Default() absent
// a config file) seeds opts.optimize; an explicit `-O`/`--optimize` flag
// overrides it.
func parseArgs(args []string, defaultOptimize optimize.Flags) (cliOptions, string, []string, error) {
	opts := cliOptions{optimize: defaultOptimize}
	var sourcePath string
	var argv []string

	i := 0
	for ; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			argv = append(argv, args[i+1:]...)
			i = len(args)
		case arg == "-d" || arg == "--dump":
			opts.dump = true
		case arg == "-c" || arg == "--compile":
			opts.compileOnly = true
		case arg == "-v" || arg == "--verbose":
			opts.verbose = true
		case arg == "-O" || arg == "--optimize":
			if i+1 >= len(args) {
				return opts, "", nil, fmt.Errorf("sbl: %s requires a value", arg)
			}
			i++
			flags, err := parseOptimizeValue(args[i])
			if err != nil {
				return opts, "", nil, err
			}
			opts.optimize = flags
		case strings.HasPrefix(arg, "--optimize="):
			flags, err := parseOptimizeValue(strings.TrimPrefix(arg, "--optimize="))
			if err != nil {
				return opts, "", nil, err
			}
			opts.optimize = flags
		case sourcePath == "" && !strings.HasPrefix(arg, "-"):
			sourcePath = arg
		default:
			return opts, "", nil, fmt.Errorf("sbl: unrecognized argument %q", arg)
		}
		if i == len(args) {
			break
		}
	}

	if sourcePath == "" {
		return opts, "", nil, fmt.Errorf("usage: sbl [flags] INPUT [-- ARGV...]")
	}
	return opts, sourcePath, argv, nil
}

func parseOptimizeValue(v string) (optimize.Flags, error) {
	switch strings.ToLower(v) {
	case "true", "yes", "1":
		return optimize.Default(), nil
	case "false", "no", "0":
		return optimize.None(), nil
	default:
		return optimize.Flags{}, fmt.Errorf("sbl: invalid -O value %q (want true|yes|1|false|no|0)", v)
	}
}

// bakeCachePath returns the on-disk path of the sqlite bake cache, honoring
// SBL_CACHE_PATH for tests and CI that want an isolated cache.
func bakeCachePath() string {
	if p := os.Getenv("SBL_CACHE_PATH"); p != "" {
		return p
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".sbl-cache.sqlite"
	}
	return filepath.Join(dir, "sbl", "bake-cache.sqlite")
}

// runCache implements `sbl cache stats|clear`.
func runCache(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: sbl cache <stats|clear>")
		return 1
	}

	bc, err := cache.Open(bakeCachePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sbl: opening bake cache: %s\n", err)
		return 1
	}
	defer bc.Close()

	switch args[0] {
	case "stats":
		stats, err := bc.Stats()
		if err != nil {
			fmt.Fprintf(os.Stderr, "sbl: reading cache stats: %s\n", err)
			return 1
		}
		if len(stats) == 0 {
			fmt.Println("bake cache is empty")
			return 0
		}
		var totalSize int64
		for _, s := range stats {
			fmt.Printf("%s  row=%s  size=%s  hits=%d  age=%s\n",
				s.Hash[:12], s.RowID, humanize.Bytes(uint64(s.Size)), s.Hits, humanize.Time(s.CreatedAt))
			totalSize += s.Size
		}
		fmt.Printf("%d entries, %s total\n", len(stats), humanize.Bytes(uint64(totalSize)))
		return 0
	case "clear":
		if err := bc.Clear(); err != nil {
			fmt.Fprintf(os.Stderr, "sbl: clearing cache: %s\n", err)
			return 1
		}
		fmt.Println("bake cache cleared")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "sbl: unknown cache subcommand %q\n", args[0])
		return 1
	}
}
