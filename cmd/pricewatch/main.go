// Package main is the terminal price watcher for the liquidity hub API.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/Blockchain-Oracle/somnia-liquidity-hub/pkg/ui"
)

func main() {
	_ = godotenv.Load()

	apiURL := flag.String("api", envOr("SLH_API_URL", "http://localhost:8080"), "Liquidity hub API base URL")
	symbols := flag.String("symbols", "SOMI,ETH,BTC", "Comma-separated symbols to watch")
	pair := flag.String("pair", "WSOMI/USDC", "DEX pool pair for the spread panel (empty disables)")
	arbSymbol := flag.String("arb-symbol", "SOMI", "CEX symbol the pool price is compared against")
	interval := flag.Duration("interval", 5*time.Second, "Poll interval")
	flag.Parse()

	var watch []string
	for _, s := range strings.Split(*symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			watch = append(watch, strings.ToUpper(s))
		}
	}
	if len(watch) == 0 {
		fmt.Fprintln(os.Stderr, "error: no symbols to watch")
		os.Exit(1)
	}

	var opts []ui.ModelOption
	if *pair != "" {
		tokens := strings.SplitN(*pair, "/", 2)
		if len(tokens) != 2 || tokens[0] == "" || tokens[1] == "" {
			fmt.Fprintf(os.Stderr, "error: -pair must be TOKEN0/TOKEN1, got %q\n", *pair)
			os.Exit(1)
		}
		opts = append(opts, ui.WithOpportunity(
			strings.ToUpper(*arbSymbol),
			strings.ToUpper(tokens[0]),
			strings.ToUpper(tokens[1]),
		))
	}

	model := ui.New(ui.NewClient(*apiURL), watch, *interval, opts...)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
