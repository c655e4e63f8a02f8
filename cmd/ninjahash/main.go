// Command ninjahash is a thin shell around package hashlog: it
// contains no build-system logic of its own, only enough CLI
// plumbing to inspect, verify, and recompact a hash log file from
// outside a running build.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/fbenkstein/ninja/hashlog"
)

var commands = []struct {
	name string
	run  func(args []string) error
	help string
}{
	{"dump", runDump, "print identity and snapshot records from a hash log"},
	{"stat", runStat, "print id/output counts and a diagnostic checksum of a hash log"},
	{"recompact", runRecompact, "rewrite a hash log to its minimal form"},
	{"verify", runVerify, "load a hash log and report corruption without modifying it"},
}

func printHelp() {
	fmt.Fprintln(os.Stderr, "usage: ninjahash <command> [args]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.help)
	}
}

func main() {
	log.SetFlags(0)
	flag.Usage = printHelp
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printHelp()
		os.Exit(2)
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(args[1:]); err != nil {
			log.Fatal(err)
		}
		return
	}
	printHelp()
	os.Exit(2)
}

func pathArg(fs *flag.FlagSet, args []string, cmd string) (string, error) {
	fs.Parse(args)
	if fs.NArg() != 1 {
		return "", errors.Errorf("%s: expected exactly one log path argument", cmd)
	}
	return fs.Arg(0), nil
}

func runDump(args []string) error {
	path, err := pathArg(flag.NewFlagSet("dump", flag.ExitOnError), args, "dump")
	if err != nil {
		return err
	}
	state := hashlog.NewState()
	warning, err := hashlog.Load(path, state)
	if err != nil {
		return errors.Wrap(err, "dump")
	}
	if warning != "" {
		log.Print(warning)
	}
	for i := 0; i < state.IDCount(); i++ {
		id := hashlog.Id(i)
		fmt.Printf("%d\t%s\n", id, state.Path(id))
		snap, ok := state.Snapshot(id)
		if !ok {
			continue
		}
		for _, in := range snap.Inputs {
			fmt.Printf("\t%d\t%s\tmtime=%d\thash=%08x\n", in.ID, state.Path(in.ID), in.MTime, uint32(in.Value))
		}
	}
	return nil
}

func runStat(args []string) error {
	path, err := pathArg(flag.NewFlagSet("stat", flag.ExitOnError), args, "stat")
	if err != nil {
		return err
	}
	state := hashlog.NewState()
	warning, err := hashlog.Load(path, state)
	if err != nil {
		return errors.Wrap(err, "stat")
	}
	if warning != "" {
		log.Print(warning)
	}

	outputs := 0
	for i := 0; i < state.IDCount(); i++ {
		if _, ok := state.Snapshot(hashlog.Id(i)); ok {
			outputs++
		}
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Printf("ids=%d outputs=%d checksum=-\n", state.IDCount(), outputs)
			return nil
		}
		return errors.Wrap(err, "stat")
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return errors.Wrap(err, "stat")
	}
	fmt.Printf("ids=%d outputs=%d checksum=%016x\n", state.IDCount(), outputs, h.Sum64())
	return nil
}

func runRecompact(args []string) error {
	path, err := pathArg(flag.NewFlagSet("recompact", flag.ExitOnError), args, "recompact")
	if err != nil {
		return err
	}
	state := hashlog.NewState()
	warning, err := hashlog.Load(path, state)
	if err != nil {
		return errors.Wrap(err, "recompact")
	}
	if warning != "" {
		log.Print(warning)
	}
	l, warning, err := hashlog.OpenForWrite(path, state, hashlog.WithLock())
	if err != nil {
		return errors.Wrap(err, "recompact")
	}
	defer l.Close()
	if warning != "" {
		log.Print(warning)
	}
	if err := l.Recompact(); err != nil {
		return errors.Wrap(err, "recompact")
	}
	return nil
}

func runVerify(args []string) error {
	path, err := pathArg(flag.NewFlagSet("verify", flag.ExitOnError), args, "verify")
	if err != nil {
		return err
	}
	state := hashlog.NewState()
	warning, err := hashlog.Verify(path, state)
	if err != nil {
		return errors.Wrap(err, "verify")
	}
	if warning != "" {
		fmt.Printf("corruption found: %s\n", warning)
		return nil
	}
	fmt.Println("clean")
	return nil
}
