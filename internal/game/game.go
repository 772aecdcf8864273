package game

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMove = errors.New("invalid move")
	ErrGameOver    = errors.New("game is over")
)

// Engine é o que a sessão precisa das regras. Os jogadores são identificados pelo nome.
type Engine interface {
	Players() [2]string
	ValidMoves() []int
	IsValidMove(location int) bool
	CurrentTurn() string
	ApplyMove(location int) (MoveResult, error)
	IsTerminal() bool
	// Winner devolve false em empate ou com a partida em andamento.
	Winner() (string, bool)
	Scores() map[string]int
	Reset()
}

// MoveResult descreve o efeito de uma jogada aceita.
type MoveResult struct {
	Location    int
	Mover       string
	Completed   []int // caixas fechadas por esta jogada
	Gained      int
	RetainsTurn bool
	Next        string
	Terminal    bool
}

// Game implementa Engine para Dots and Boxes.
type Game struct {
	board   *Board
	players [2]string
	scores  [2]int
	turn    int
}

var _ Engine = (*Game)(nil)

// New cria uma partida em que first joga primeiro.
func New(first, second string, dim int) (*Game, error) {
	if first == "" || second == "" || first == second {
		return nil, fmt.Errorf("game needs two distinct players, got %q and %q", first, second)
	}
	board, err := NewBoard(dim)
	if err != nil {
		return nil, err
	}
	return &Game{board: board, players: [2]string{first, second}}, nil
}

func (g *Game) Board() *Board       { return g.board }
func (g *Game) Players() [2]string  { return g.players }
func (g *Game) ValidMoves() []int   { return g.board.free() }
func (g *Game) IsTerminal() bool    { return g.board.IsFull() }
func (g *Game) CurrentTurn() string { return g.players[g.turn] }

func (g *Game) IsValidMove(location int) bool {
	return !g.IsTerminal() && g.board.IsValid(location)
}

func (g *Game) ApplyMove(location int) (MoveResult, error) {
	if g.IsTerminal() {
		return MoveResult{}, ErrGameOver
	}
	if !g.board.IsValid(location) {
		return MoveResult{}, fmt.Errorf("%w: location %d", ErrInvalidMove, location)
	}

	mover := g.players[g.turn]
	closed := g.board.draw(location, mover)
	g.scores[g.turn] += len(closed)

	res := MoveResult{
		Location:    location,
		Mover:       mover,
		Completed:   closed,
		Gained:      len(closed),
		RetainsTurn: len(closed) > 0,
	}
	if !res.RetainsTurn {
		g.turn = 1 - g.turn
	}
	res.Next = g.players[g.turn]
	res.Terminal = g.IsTerminal()
	return res, nil
}

func (g *Game) Winner() (string, bool) {
	if !g.IsTerminal() || g.scores[0] == g.scores[1] {
		return "", false
	}
	if g.scores[0] > g.scores[1] {
		return g.players[0], true
	}
	return g.players[1], true
}

func (g *Game) Scores() map[string]int {
	return map[string]int{
		g.players[0]: g.scores[0],
		g.players[1]: g.scores[1],
	}
}

// Reset limpa o tabuleiro e devolve a vez ao primeiro jogador.
func (g *Game) Reset() {
	g.board.reset()
	g.scores = [2]int{}
	g.turn = 0
}
