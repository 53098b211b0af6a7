// This program provides tooling to generate miner keys and to mine,
// validate and compare chains without running a node.
package main

import "github.com/ardanlabs/powledger/app/tooling/ledger/cmd"

func main() {
	cmd.Execute()
}
