// Command warpz-cli is a thin command-line client for warpzd, dispatching
// subcommands by name. The subcommands print fixed placeholder output; none
// of them contacts a running daemon.
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("warpz-cli v%s\n", version)
	case "help":
		printUsage()
	case "sync":
		cmdSync(os.Args[2:])
	case "balance":
		cmdBalance(os.Args[2:])
	case "address":
		cmdAddress(os.Args[2:])
	case "send":
		cmdSend(os.Args[2:])
	case "account":
		cmdAccount(os.Args[2:])
	default:
		fmt.Printf("unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("warpz-cli - command-line client for the warpz wallet daemon")
	fmt.Println()
	fmt.Println("Usage: warpz-cli <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  version           Show version information")
	fmt.Println("  help              Show this help message")
	fmt.Println("  sync status       Show synchronizer progress")
	fmt.Println("  balance <account> Show per-pool spendable balance")
	fmt.Println("  address new       Derive a new diversified address")
	fmt.Println("  send              Build, sign, and broadcast a payment")
	fmt.Println("  account list      List known accounts")
}

func cmdSync(args []string) {
	if len(args) == 0 || args[0] != "status" {
		fmt.Println("Usage: warpz-cli sync status")
		return
	}
	fmt.Println("Sync Status:")
	fmt.Println("  Syncing: false")
	fmt.Println("  Progress: 0")
	fmt.Println("  Target: 0")
}

func cmdBalance(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: warpz-cli balance <account>")
		return
	}
	fmt.Printf("Balance for account %s:\n", args[0])
	fmt.Println("  Transparent: 0")
	fmt.Println("  Sapling:     0")
	fmt.Println("  Orchard:     0")
}

func cmdAddress(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: warpz-cli address new|list")
		return
	}
	switch args[0] {
	case "new":
		fmt.Println("New diversified address not yet connected to a running daemon")
	case "list":
		fmt.Println("(no addresses)")
	default:
		fmt.Printf("unknown address command: %s\n", args[0])
	}
}

func cmdSend(args []string) {
	fmt.Println("Usage: warpz-cli send --account <id> --to <address> --amount <zec> [--memo <text>]")
}

func cmdAccount(args []string) {
	if len(args) == 0 || args[0] != "list" {
		fmt.Println("Usage: warpz-cli account list")
		return
	}
	fmt.Println("(no accounts)")
}
