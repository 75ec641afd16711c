// Command lowpansim demonstrates the 6LoWPAN adaptation device over an
// in-memory link pair: HC1 compression/decompression, FRAG1/FRAGN
// fragmentation and reassembly, and the trace hooks a real deployment
// would wire to metrics or logging.
package main

import (
	"fmt"
	"os"

	"github.com/therealutkarshpriyadarshi/network/cmd/lowpansim/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
