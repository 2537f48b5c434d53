package uci

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/hailam/corvid/internal/chess"
	"github.com/hailam/corvid/internal/search"
)

// UCI implements the Universal Chess Interface protocol over stdin/stdout,
// driving a search.WorkerPool per §4.L/§6.
type UCI struct {
	pool *search.WorkerPool
	log  zerolog.Logger

	board          *chess.Board
	chess960       bool
	positionHashes []uint64

	threads      int
	multiPV      int
	moveOverhead time.Duration
	showWDL      bool
	normalize    bool
	timemanNodes bool
	ponder       bool

	searching     bool
	searchDone    chan struct{}
	stopRequested atomic.Bool
}

// New creates a UCI handler over an existing worker pool.
func New(pool *search.WorkerPool, log zerolog.Logger) *UCI {
	startBoard, err := chess.FromFEN(chess.StartFEN, false)
	if err != nil {
		panic(err)
	}
	return &UCI{
		pool:         pool,
		log:          log,
		board:        startBoard,
		threads:      runtime.GOMAXPROCS(0),
		multiPV:      1,
		moveOverhead: 30 * time.Millisecond,
	}
}

// SetThreads overrides the worker count a subsequent `go` command uses,
// before the UCI `setoption name Threads` channel takes over.
func (u *UCI) SetThreads(n int) {
	if n >= 1 {
		u.threads = n
	}
}

// Run starts the UCI main loop, reading commands from stdin until "quit"
// or EOF.
func (u *UCI) Run() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "uci":
			u.handleUCI()
		case "isready":
			fmt.Println("readyok")
		case "ucinewgame":
			u.handleNewGame()
		case "position":
			u.handlePosition(args)
		case "go":
			u.handleGo(args)
		case "stop":
			u.handleStop()
		case "ponderhit":
			u.ponder = false
		case "setoption":
			u.handleSetOption(args)
		case "d":
			fmt.Println(u.board.String())
		case "perft":
			u.handlePerft(args)
		case "bench":
			u.handleBench()
		case "quit":
			u.handleQuit()
			return
		default:
			u.log.Debug().Str("cmd", cmd).Msg("unrecognized UCI command")
		}
	}
}

func (u *UCI) handleUCI() {
	fmt.Println("id name Corvid")
	fmt.Println("id author Corvid Team")
	fmt.Println()
	fmt.Println("option name Threads type spin default 1 min 1 max 512")
	fmt.Println("option name Hash type spin default 16 min 1 max 33554432")
	fmt.Println("option name MoveOverhead type spin default 30 min 1 max 5000")
	fmt.Println("option name MultiPV type spin default 1 min 1 max 500")
	fmt.Println("option name UCI_Chess960 type check default false")
	fmt.Println("option name UCI_ShowWDL type check default false")
	fmt.Println("option name NormalizeScore type check default false")
	fmt.Println("option name TimemanForNodes type check default false")
	fmt.Println("option name Ponder type check default false")
	fmt.Println("option name Clear Hash type button")
	fmt.Println("uciok")
}

func (u *UCI) handleNewGame() {
	u.handleStop()
	u.pool.Clear()
	b, err := chess.FromFEN(chess.StartFEN, u.chess960)
	if err != nil {
		u.reportError("ucinewgame", err)
		return
	}
	u.board = b
	u.positionHashes = []uint64{u.board.Top().BoardKey}
}

// handlePosition parses and applies a "position" command (§6):
//
//	position startpos [moves m1 m2 …]
//	position fen <6 fields> [moves m1 m2 …]
func (u *UCI) handlePosition(args []string) {
	if len(args) == 0 {
		return
	}

	switch args[0] {
	case "startpos":
		b, err := chess.FromFEN(chess.StartFEN, u.chess960)
		if err != nil {
			u.reportError("position", err)
			return
		}
		u.board = b
	case "fen":
		fenEnd := len(args)
		for i, arg := range args[1:] {
			if arg == "moves" {
				fenEnd = i + 1
				break
			}
		}
		fenStr := strings.Join(args[1:fenEnd], " ")
		b, err := chess.FromFEN(fenStr, u.chess960)
		if err != nil {
			u.reportError("position fen", errors.Wrapf(err, "invalid FEN %q", fenStr))
			return
		}
		u.board = b
	default:
		return
	}

	u.positionHashes = []uint64{u.board.Top().BoardKey}

	moveStart := len(args)
	for i, arg := range args {
		if arg == "moves" {
			moveStart = i + 1
			break
		}
	}

	if moveStart <= len(args) {
		for _, moveStr := range args[moveStart:] {
			m := u.parseMove(moveStr)
			if m == chess.NoMove {
				u.reportError("position moves", errors.Errorf("invalid move %q", moveStr))
				return
			}
			u.board.DoMove(m, u.board.MoveGivesCheck(m))
			u.positionHashes = append(u.positionHashes, u.board.Top().BoardKey)
		}
	}
}

// parseMove converts a UCI long-algebraic move string into the matching
// legal chess.Move, including chess960 "king captures rook" castling.
func (u *UCI) parseMove(moveStr string) chess.Move {
	if len(moveStr) < 4 {
		return chess.NoMove
	}
	from, err := chess.ParseSquare(moveStr[0:2])
	if err != nil {
		return chess.NoMove
	}
	to, err := chess.ParseSquare(moveStr[2:4])
	if err != nil {
		return chess.NoMove
	}

	var promo chess.PieceType
	if len(moveStr) == 5 {
		switch moveStr[4] {
		case 'q':
			promo = chess.Queen
		case 'r':
			promo = chess.Rook
		case 'b':
			promo = chess.Bishop
		case 'n':
			promo = chess.Knight
		}
	}

	moves := u.board.GenerateLegal()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.From() != from || m.To() != to {
			continue
		}
		if promo != chess.NoPieceType {
			if m.IsPromotion() && m.Promotion() == promo {
				return m
			}
			continue
		}
		if !m.IsPromotion() {
			return m
		}
	}
	return chess.NoMove
}

// goOptions holds parsed "go" command parameters (§6).
type goOptions struct {
	Depth       int
	Nodes       uint64
	Mate        int
	MoveTime    time.Duration
	Infinite    bool
	Ponder      bool
	WTime       time.Duration
	BTime       time.Duration
	WInc        time.Duration
	BInc        time.Duration
	MovesToGo   int
	SearchMoves []string
	Perft       int
}

func (u *UCI) parseGoOptions(args []string) goOptions {
	var opts goOptions
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "depth":
			if i+1 < len(args) {
				opts.Depth, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "nodes":
			if i+1 < len(args) {
				opts.Nodes, _ = strconv.ParseUint(args[i+1], 10, 64)
				i++
			}
		case "mate":
			if i+1 < len(args) {
				opts.Mate, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "movetime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.MoveTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "infinite":
			opts.Infinite = true
		case "ponder":
			opts.Ponder = true
		case "wtime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.WTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "btime":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.BTime = time.Duration(ms) * time.Millisecond
				i++
			}
		case "winc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.WInc = time.Duration(ms) * time.Millisecond
				i++
			}
		case "binc":
			if i+1 < len(args) {
				ms, _ := strconv.Atoi(args[i+1])
				opts.BInc = time.Duration(ms) * time.Millisecond
				i++
			}
		case "movestogo":
			if i+1 < len(args) {
				opts.MovesToGo, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "perft":
			if i+1 < len(args) {
				opts.Perft, _ = strconv.Atoi(args[i+1])
				i++
			}
		case "searchmoves":
			for i+1 < len(args) {
				opts.SearchMoves = append(opts.SearchMoves, args[i+1])
				i++
			}
		}
	}
	return opts
}

func (u *UCI) calculateLimits(opts goOptions) search.UCILimits {
	if opts.Infinite {
		return search.UCILimits{Infinite: true, Ponder: opts.Ponder}
	}
	limits := search.UCILimits{
		Depth:     opts.Depth,
		Nodes:     opts.Nodes,
		Mate:      opts.Mate,
		MoveTime:  opts.MoveTime,
		MovesToGo: opts.MovesToGo,
		Ponder:    opts.Ponder,
	}
	if opts.MoveTime == 0 {
		limits.Time[chess.White] = opts.WTime
		limits.Time[chess.Black] = opts.BTime
		limits.Inc[chess.White] = opts.WInc
		limits.Inc[chess.Black] = opts.BInc
		if limits.Time[u.board.SideToMove()] > u.moveOverhead {
			limits.Time[u.board.SideToMove()] -= u.moveOverhead
		}
	}
	return limits
}

// handleGo launches a search in its own goroutine, per §6's non-blocking
// `go` contract: the UCI loop keeps reading (and can service `stop`) while
// the search runs.
func (u *UCI) handleGo(args []string) {
	opts := u.parseGoOptions(args)

	if opts.Perft > 0 {
		u.runPerftCommand(opts.Perft)
		return
	}

	limits := u.calculateLimits(opts)

	u.pool.OnInfo = func(info search.SearchInfo) {
		u.sendInfo(info)
	}

	var restrict map[chess.Move]bool
	if len(opts.SearchMoves) > 0 {
		restrict = make(map[chess.Move]bool, len(opts.SearchMoves))
		for _, s := range opts.SearchMoves {
			if m := u.parseMove(s); m != chess.NoMove {
				restrict[m] = true
			}
		}
	}

	u.searching = true
	u.stopRequested.Store(false)
	u.searchDone = make(chan struct{})

	b := u.board.Clone()
	numWorkers := u.threads

	var excluded []chess.Move
	if restrict != nil {
		all := b.GenerateLegal()
		for i := 0; i < all.Len(); i++ {
			if m := all.Get(i); !restrict[m] {
				excluded = append(excluded, m)
			}
		}
	}

	multiPV := u.multiPV

	go func() {
		defer close(u.searchDone)

		var result search.SearchResult
		if multiPV > 1 {
			results := u.pool.SearchMultiPV(b, limits, multiPV, excluded...)
			if len(results) == 0 {
				fmt.Println("bestmove 0000")
				return
			}
			result = results[0]
		} else {
			result = u.pool.SearchWithUCILimits(b, limits, numWorkers, excluded...)
		}
		u.searching = false

		legal := u.board.GenerateLegal()
		found := false
		for i := 0; i < legal.Len(); i++ {
			if legal.Get(i) == result.Move {
				found = true
				break
			}
		}
		if !found {
			if legal.Len() > 0 {
				result.Move = legal.Get(0)
			} else {
				fmt.Println("bestmove 0000")
				return
			}
		}

		ponderMove := u.probePonderMove(result)
		if ponderMove != chess.NoMove {
			fmt.Printf("bestmove %s ponder %s\n", result.Move.String(), ponderMove.String())
		} else {
			fmt.Printf("bestmove %s\n", result.Move.String())
		}
	}()
}

// probePonderMove returns the PV's second move as the ponder move, or NoMove
// when the PV holds fewer than two moves; the transposition table is not
// probed.
func (u *UCI) probePonderMove(result search.SearchResult) chess.Move {
	if len(result.PV) < 2 {
		return chess.NoMove
	}
	return result.PV[1]
}

func (u *UCI) runPerftCommand(depth int) {
	start := time.Now()
	nodes := u.pool.Perft(u.board, depth)
	elapsed := time.Since(start)
	fmt.Printf("Nodes: %d\n", nodes)
	fmt.Printf("Time: %v\n", elapsed)
	if elapsed > 0 {
		fmt.Printf("NPS: %.0f\n", float64(nodes)/elapsed.Seconds())
	}
}

func (u *UCI) sendInfo(info search.SearchInfo) {
	var parts []string
	parts = append(parts, fmt.Sprintf("depth %d", info.Depth))
	if info.SelDepth > 0 {
		parts = append(parts, fmt.Sprintf("seldepth %d", info.SelDepth))
	}
	parts = append(parts, fmt.Sprintf("multipv %d", max(1, info.MultiPV)))

	score := info.Score
	if u.normalize {
		score = normalizeScore(score)
	}
	parts = append(parts, "score "+search.ScoreToString(score))

	parts = append(parts, fmt.Sprintf("nodes %d", info.Nodes))
	parts = append(parts, fmt.Sprintf("time %d", info.Time.Milliseconds()))
	if info.Time > 0 {
		nps := uint64(float64(info.Nodes) / info.Time.Seconds())
		parts = append(parts, fmt.Sprintf("nps %d", nps))
	}
	if info.HashFull > 0 {
		parts = append(parts, fmt.Sprintf("hashfull %d", info.HashFull))
	}
	if u.showWDL {
		w, d, l := estimateWDL(info.Score)
		parts = append(parts, fmt.Sprintf("wdl %d %d %d", w, d, l))
	}

	if len(info.PV) > 0 {
		strs := make([]string, len(info.PV))
		for i, m := range info.PV {
			strs[i] = m.String()
		}
		parts = append(parts, "pv "+strings.Join(strs, " "))
	}

	fmt.Printf("info %s\n", strings.Join(parts, " "))
}

// normalizeScore is the hook for §6's NormalizeScore option. Without a
// tuned win-probability model the identity mapping is the honest default;
// mate scores always pass through unscaled.
func normalizeScore(score int) int {
	return score
}

// estimateWDL produces a crude win/draw/loss estimate from a centipawn
// score via a logistic curve, for UCI_ShowWDL.
func estimateWDL(score int) (w, d, l int) {
	if score >= search.MateScore-search.MaxPly {
		return 1000, 0, 0
	}
	if score <= -(search.MateScore - search.MaxPly) {
		return 0, 0, 1000
	}
	x := float64(score) / 100.0
	winProb := 1.0 / (1.0 + math.Exp(-x))
	w = int(winProb * 1000)
	l = 1000 - w
	if w > l {
		d = min(w-l, 200)
	} else {
		d = min(l-w, 200)
	}
	w -= d / 2
	l -= d / 2
	return w, d, l
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (u *UCI) handleStop() {
	if u.searching {
		u.stopRequested.Store(true)
		u.pool.Stop()
		<-u.searchDone
	}
}

func (u *UCI) handleQuit() {
	u.handleStop()
}

func (u *UCI) handleSetOption(args []string) {
	var name, value string
	readingName, readingValue := false, false

	for _, arg := range args {
		switch arg {
		case "name":
			readingName, readingValue = true, false
		case "value":
			readingName, readingValue = false, true
		default:
			if readingName {
				if name != "" {
					name += " "
				}
				name += arg
			} else if readingValue {
				if value != "" {
					value += " "
				}
				value += arg
			}
		}
	}

	switch strings.ToLower(name) {
	case "threads":
		if n, err := strconv.Atoi(value); err == nil && n >= 1 && n <= 512 {
			u.threads = n
		}
	case "hash":
		if mb, err := strconv.Atoi(value); err == nil && mb >= 1 {
			u.pool.Resize(mb)
		}
	case "moveoverhead":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 1 {
			u.moveOverhead = time.Duration(ms) * time.Millisecond
		}
	case "multipv":
		if n, err := strconv.Atoi(value); err == nil && n >= 1 && n <= 500 {
			u.multiPV = n
		}
	case "uci_chess960":
		u.chess960 = strings.ToLower(value) == "true"
	case "uci_showwdl":
		u.showWDL = strings.ToLower(value) == "true"
	case "normalizescore":
		u.normalize = strings.ToLower(value) == "true"
	case "timemanfornodes":
		u.timemanNodes = strings.ToLower(value) == "true"
	case "ponder":
		u.ponder = strings.ToLower(value) == "true"
	case "clear hash":
		u.pool.Clear()
	default:
		u.log.Debug().Str("option", name).Str("value", value).Msg("unrecognized setoption")
	}
}

func (u *UCI) handlePerft(args []string) {
	depth := 5
	if len(args) > 0 {
		depth, _ = strconv.Atoi(args[0])
	}
	u.runPerftCommand(depth)
}

// benchPositions is the fixed position list searched by `bench`/`--bench`
// for build-to-build node-count and NPS comparison (SPEC_FULL.md's
// SUPPLEMENTED FEATURES).
var benchPositions = []string{
	chess.StartFEN,
	"r1bqkbnr/pppp1ppp/2n5/4p3/2B1P3/5N2/PPPP1PPP/RNBQK2R b KQkq - 3 3",
	"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
	"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
	"rnbq1k1r/pp1Pbppp/2p5/8/2B5/8/PPP1NnPP/RNBQK2R w KQ - 1 8",
	"8/8/8/4k3/8/4K3/4P3/8 w - - 0 1",
}

// RunBench searches the fixed bench position list to a fixed depth,
// printing aggregate nodes and NPS (SPEC_FULL.md SUPPLEMENTED FEATURES).
func RunBench(pool *search.WorkerPool, depth int) {
	start := time.Now()
	var totalNodes uint64
	for _, fen := range benchPositions {
		b, err := chess.FromFEN(fen, false)
		if err != nil {
			continue
		}
		limits := search.UCILimits{Depth: depth, MoveTime: time.Hour}
		pool.SearchWithUCILimits(b, limits, runtime.GOMAXPROCS(0))
		totalNodes += pool.TotalNodesLastSearch()
	}
	elapsed := time.Since(start)
	fmt.Printf("%d nodes %d nps\n", totalNodes, uint64(float64(totalNodes)/elapsed.Seconds()))
}

func (u *UCI) handleBench() {
	RunBench(u.pool, 8)
}

func (u *UCI) reportError(context string, err error) {
	fmt.Printf("info string error: %v\n", err)
	u.log.Error().Err(err).Str("context", context).Msg("uci command failed")
}
