// Command roulette-verify recomputes a single spin from its seeds.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/MJE43/stake-roulette-sim/internal/betting"
	"github.com/MJE43/stake-roulette-sim/internal/engine"
	"github.com/MJE43/stake-roulette-sim/internal/games"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "roulette-verify:", err)
		os.Exit(2)
	}
}

type result struct {
	ServerSeedHash string               `json:"server_seed_hash"`
	ClientSeed     string               `json:"client_seed"`
	Nonce          uint64               `json:"nonce"`
	Cursor         uint64               `json:"cursor"`
	Float          float64              `json:"float"`
	Pocket         int                  `json:"pocket"`
	Color          games.Color          `json:"color"`
	Parity         games.Parity         `json:"parity"`
	Outcome        betting.OutcomeClass `json:"outcome"`
	Payout         int                  `json:"payout"`
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("roulette-verify", flag.ContinueOnError)
	server := fs.String("server", "", "server seed (raw text, not hex decoded)")
	client := fs.String("client", "", "client seed")
	nonce := fs.Uint64("nonce", 0, "nonce")
	cursor := fs.Uint64("cursor", 0, "byte offset into the stream")
	asJSON := fs.Bool("json", false, "print JSON instead of text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *server == "" || *client == "" {
		return errors.New("-server and -client are required")
	}

	seeds := engine.Seeds{Server: *server, Client: *client}
	out := games.Spin(seeds, *nonce, *cursor)
	class, payout := betting.Classify(out)

	res := result{
		ServerSeedHash: seeds.ServerHash(),
		ClientSeed:     seeds.Client,
		Nonce:          *nonce,
		Cursor:         *cursor,
		Float:          out.Float,
		Pocket:         out.Pocket,
		Color:          out.Color,
		Parity:         out.Parity,
		Outcome:        class,
		Payout:         payout,
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(stdout, "Roulette Result: %d\n", res.Pocket)
	fmt.Fprintf(stdout, "Color: %s\n", res.Color)
	fmt.Fprintf(stdout, "Parity: %s\n", res.Parity)
	fmt.Fprintf(stdout, "Outcome: %s (x%d)\n", res.Outcome, res.Payout)
	fmt.Fprintf(stdout, "Float: %.17f\n", res.Float)
	fmt.Fprintf(stdout, "Server Seed Hash: %s\n", res.ServerSeedHash)
	return nil
}
