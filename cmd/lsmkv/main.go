// Command lsmkv is a thin command-line front end over the engine
// package: one process per invocation, opening the store, performing a
// single operation, and closing it again.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/Priyanshu23/FlashLogGo/engine"
)

func main() {
	app := &cli.Command{
		Name:  "lsmkv",
		Usage: "LSM-tree key-value store with an out-of-line value log",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "store directory for SSTs",
				Value:   "./lsmkv-data",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable diagnostic logging to stderr",
			},
		},

		Commands: []*cli.Command{
			putCommand(),
			getCommand(),
			delCommand(),
			scanCommand(),
			gcCommand(),
			resetCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "lsmkv: %v\n", err)
		os.Exit(1)
	}
}

func openEngine(c *cli.Command) (*engine.Engine, error) {
	dir := c.String("dir")
	out := io.Discard
	if c.Bool("verbose") {
		out = os.Stderr
	}
	logger := log.New(out, "lsmkv: ", log.LstdFlags)
	return engine.Open(dir, filepath.Join(dir, "lsmkv.vlog"), engine.WithLogger(logger))
}

func parseKey(s string) (uint64, error) {
	k, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return k, nil
}

func putCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "write key=value",
		ArgsUsage: "<key> <value>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("put requires exactly 2 arguments: <key> <value>")
			}
			key, err := parseKey(c.Args().Get(0))
			if err != nil {
				return err
			}
			e, err := openEngine(c)
			if err != nil {
				return err
			}
			defer e.Close()
			return e.Put(key, []byte(c.Args().Get(1)))
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "read a key's value",
		ArgsUsage: "<key>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("get requires exactly 1 argument: <key>")
			}
			key, err := parseKey(c.Args().Get(0))
			if err != nil {
				return err
			}
			e, err := openEngine(c)
			if err != nil {
				return err
			}
			defer e.Close()
			v, err := e.Get(key)
			if err != nil {
				return err
			}
			if v == nil {
				fmt.Println("(not found)")
				return nil
			}
			fmt.Println(string(v))
			return nil
		},
	}
}

func delCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Usage:     "delete a key",
		ArgsUsage: "<key>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("del requires exactly 1 argument: <key>")
			}
			key, err := parseKey(c.Args().Get(0))
			if err != nil {
				return err
			}
			e, err := openEngine(c)
			if err != nil {
				return err
			}
			defer e.Close()
			deleted, err := e.Del(key)
			if err != nil {
				return err
			}
			fmt.Println(deleted)
			return nil
		},
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "list every live key in [lo, hi]",
		ArgsUsage: "<lo> <hi>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 2 {
				return fmt.Errorf("scan requires exactly 2 arguments: <lo> <hi>")
			}
			lo, err := parseKey(c.Args().Get(0))
			if err != nil {
				return err
			}
			hi, err := parseKey(c.Args().Get(1))
			if err != nil {
				return err
			}
			e, err := openEngine(c)
			if err != nil {
				return err
			}
			defer e.Close()
			recs, err := e.Scan(lo, hi)
			if err != nil {
				return err
			}
			for _, r := range recs {
				fmt.Printf("%d\t%s\n", r.Key, hex.EncodeToString(r.Value))
			}
			return nil
		},
	}
}

func gcCommand() *cli.Command {
	return &cli.Command{
		Name:  "gc",
		Usage: "reclaim value-log space by relocating live records",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "min-bytes",
				Usage: "minimum bytes to scan from the value-log tail",
				Value: 4096,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEngine(c)
			if err != nil {
				return err
			}
			defer e.Close()
			return e.GC(uint64(c.Int("min-bytes")))
		},
	}
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "delete every SST and the value log, starting over empty",
		Action: func(ctx context.Context, c *cli.Command) error {
			e, err := openEngine(c)
			if err != nil {
				return err
			}
			defer e.Close()
			return e.Reset()
		},
	}
}
