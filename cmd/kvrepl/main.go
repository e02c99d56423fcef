// kvrepl is an interactive CLI for a kvmap instance.
//
// Usage:
//
//	kvrepl [-c capacity] [--config file]
//
// Commands (in REPL):
//
//	put <key> <value>        Insert or update an entry
//	get <key> [key...]       Look up one or more keys
//	del <key> [key...]       Delete one or more keys
//	range <from> <to>        List live entries with from <= key < to
//	len                      Live entry count
//	cap                      Configured capacity
//	fill <count> [start]     Insert count sequential entries
//	help                     Show this help
//	exit / quit / q          Exit
//
// The map lives only for the session; there is no persistence.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/KentBeck/GPUSortedMap/pkg/kvmap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	capacity := flag.Int("c", 1024, "map capacity in entries")
	flag.IntVar(capacity, "capacity", 1024, "map capacity in entries")
	configPath := flag.String("config", "", "JSONC options file (overrides -c)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kvrepl [-c capacity] [--config file]\n\n")
		fmt.Fprintf(os.Stderr, "Interactive shell over a batched sorted key/value map.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	opts := kvmap.Options{Capacity: *capacity}
	if *configPath != "" {
		loaded, err := kvmap.LoadOptionsFile(*configPath)
		if err != nil {
			return err
		}
		opts = loaded
	}

	m, err := kvmap.NewWithOptions(opts)
	if err != nil {
		return fmt.Errorf("creating map: %w", err)
	}
	defer m.Close()

	repl := &REPL{m: m}
	return repl.Run()
}

// REPL drives the interactive loop over one map instance.
type REPL struct {
	m     *kvmap.Map
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kvrepl_history")
}

// Run reads and executes commands until EOF or an exit command.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("kvrepl - batched sorted map CLI (capacity=%d)\n", r.m.Capacity())
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("kvrepl> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()
			return nil

		case "help", "?":
			r.printHelp()

		case "put":
			r.cmdPut(args)

		case "get":
			r.cmdGet(args)

		case "del", "delete":
			r.cmdDelete(args)

		case "range":
			r.cmdRange(args)

		case "len", "count":
			fmt.Printf("%d live entries (capacity %d)\n", r.m.Len(), r.m.Capacity())

		case "cap":
			fmt.Printf("%d\n", r.m.Capacity())

		case "fill":
			r.cmdFill(args)

		default:
			fmt.Printf("unknown command %q; type 'help'\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	r.liner.WriteHistory(f)
}

func (r *REPL) completer(line string) []string {
	commands := []string{"put ", "get ", "del ", "range ", "len", "cap", "fill ", "help", "exit"}
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c, strings.ToLower(line)) {
			out = append(out, c)
		}
	}
	return out
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  put <key> <value>     Insert or update an entry")
	fmt.Println("  get <key> [key...]    Look up one or more keys")
	fmt.Println("  del <key> [key...]    Delete one or more keys")
	fmt.Println("  range <from> <to>     List live entries with from <= key < to")
	fmt.Println("  len                   Live entry count")
	fmt.Println("  cap                   Configured capacity")
	fmt.Println("  fill <count> [start]  Insert count sequential entries")
	fmt.Println("  exit / quit / q       Exit")
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not a 32-bit unsigned integer: %q", s)
	}
	return uint32(v), nil
}

func parseU32List(args []string) ([]uint32, error) {
	out := make([]uint32, 0, len(args))
	for _, a := range args {
		v, err := parseU32(a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *REPL) cmdPut(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: put <key> <value>")
		return
	}
	key, err := parseU32(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	value, err := parseU32(args[1])
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := r.m.Put(key, value); err != nil {
		fmt.Printf("put failed: %v\n", err)
		return
	}
	fmt.Printf("OK (%d live)\n", r.m.Len())
}

func (r *REPL) cmdGet(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: get <key> [key...]")
		return
	}
	keys, err := parseU32List(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	results, err := r.m.BulkGet(keys)
	if err != nil {
		fmt.Printf("get failed: %v\n", err)
		return
	}
	for i, res := range results {
		if res.Found {
			fmt.Printf("%d = %d\n", keys[i], res.Value)
		} else {
			fmt.Printf("%d   (absent)\n", keys[i])
		}
	}
}

func (r *REPL) cmdDelete(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: del <key> [key...]")
		return
	}
	keys, err := parseU32List(args)
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := r.m.BulkDelete(keys); err != nil {
		fmt.Printf("delete failed: %v\n", err)
		return
	}
	fmt.Printf("OK (%d live)\n", r.m.Len())
}

func (r *REPL) cmdRange(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: range <from> <to>")
		return
	}
	from, err := parseU32(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	to, err := parseU32(args[1])
	if err != nil {
		fmt.Println(err)
		return
	}
	entries, err := r.m.Range(from, to)
	if err != nil {
		fmt.Printf("range failed: %v\n", err)
		return
	}
	for _, e := range entries {
		fmt.Printf("%d = %d\n", e.Key, e.Value)
	}
	fmt.Printf("(%d entries)\n", len(entries))
}

func (r *REPL) cmdFill(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Println("usage: fill <count> [start]")
		return
	}
	count, err := parseU32(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	start := uint32(0)
	if len(args) == 2 {
		start, err = parseU32(args[1])
		if err != nil {
			fmt.Println(err)
			return
		}
	}
	batch := make([]kvmap.KvEntry, count)
	for i := range batch {
		k := start + uint32(i)
		batch[i] = kvmap.KvEntry{Key: k, Value: k}
	}
	if err := r.m.BulkPut(batch); err != nil {
		fmt.Printf("fill failed: %v\n", err)
		return
	}
	fmt.Printf("OK (%d live)\n", r.m.Len())
}
