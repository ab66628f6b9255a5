// Command storagecli is a REPL driving the storage engine from raw
// SQL text, taking an optional data directory as its first argument.
package main

import (
	"fmt"
	"os"

	"github.com/zhukovaskychina/xmysql-server/engine/engconf"
	"github.com/zhukovaskychina/xmysql-server/engine/enginecli"
)

func main() {
	dataDir := "."
	if len(os.Args) > 1 {
		dataDir = os.Args[1]
	}
	cfg := engconf.Default(dataDir)

	db, err := enginecli.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	enginecli.RunREPL(db, os.Stdin, os.Stdout)
}
