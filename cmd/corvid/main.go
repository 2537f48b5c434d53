package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/hailam/corvid/internal/search"
	"github.com/hailam/corvid/internal/uci"
)

func main() {
	hashMB := pflag.Int("hash", 16, "transposition table size in MB")
	threads := pflag.Int("threads", 1, "number of search worker threads")
	bench := pflag.Bool("bench", false, "run the fixed bench position list and exit")
	benchDepth := pflag.Int("bench-depth", 8, "search depth used by --bench")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug-level logging to stderr")
	pflag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	pool := search.NewEngine(*hashMB)
	log.Info().Int("hashMB", *hashMB).Int("threads", *threads).Msg("corvid engine initialized")

	if *bench {
		uci.RunBench(pool, *benchDepth)
		return
	}

	protocol := uci.New(pool, log)
	protocol.SetThreads(*threads)
	protocol.Run()
}
