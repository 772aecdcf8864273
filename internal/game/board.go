package game

import "fmt"

const (
	DefaultDim = 5
	MaxDim     = 10
)

// Board guarda as linhas desenhadas e o dono de cada caixa.
// Linhas de uma linha de caixas: DIM horizontais seguidas de DIM+1 verticais.
type Board struct {
	dim     int
	lines   []bool
	owners  []string
	touches [][]int // linha -> caixas que usam a linha (1 ou 2)
}

func NewBoard(dim int) (*Board, error) {
	if dim < 1 || dim > MaxDim {
		return nil, fmt.Errorf("board dimension %d out of range 1..%d", dim, MaxDim)
	}
	b := &Board{
		dim:     dim,
		lines:   make([]bool, LineCount(dim)),
		owners:  make([]string, dim*dim),
		touches: make([][]int, LineCount(dim)),
	}
	for box := 0; box < dim*dim; box++ {
		for _, l := range boxLines(dim, box) {
			b.touches[l] = append(b.touches[l], box)
		}
	}
	return b, nil
}

// LineCount devolve 2·dim·(dim+1).
func LineCount(dim int) int {
	return 2 * dim * (dim + 1)
}

// boxLines devolve topo, esquerda, direita e base da caixa.
func boxLines(dim, box int) [4]int {
	r, c := box/dim, box%dim
	top := (2*dim+1)*r + c
	return [4]int{top, top + dim, top + dim + 1, top + 2*dim + 1}
}

func (b *Board) Dim() int   { return b.dim }
func (b *Board) Lines() int { return len(b.lines) }
func (b *Board) Boxes() int { return len(b.owners) }
func (b *Board) Owner(box int) string {
	if box < 0 || box >= len(b.owners) {
		return ""
	}
	return b.owners[box]
}

func (b *Board) IsValid(loc int) bool {
	return loc >= 0 && loc < len(b.lines) && !b.lines[loc]
}

func (b *Board) IsFull() bool {
	for _, drawn := range b.lines {
		if !drawn {
			return false
		}
	}
	return true
}

// draw marca a linha e atribui a owner toda caixa que ela fechou.
// Devolve as caixas fechadas. O chamador já validou a posição.
func (b *Board) draw(loc int, owner string) []int {
	b.lines[loc] = true
	var closed []int
	for _, box := range b.touches[loc] {
		if b.owners[box] != "" {
			continue
		}
		complete := true
		for _, l := range boxLines(b.dim, box) {
			if !b.lines[l] {
				complete = false
				break
			}
		}
		if complete {
			b.owners[box] = owner
			closed = append(closed, box)
		}
	}
	return closed
}

func (b *Board) free() []int {
	out := make([]int, 0, len(b.lines))
	for i, drawn := range b.lines {
		if !drawn {
			out = append(out, i)
		}
	}
	return out
}

func (b *Board) reset() {
	for i := range b.lines {
		b.lines[i] = false
	}
	for i := range b.owners {
		b.owners[i] = ""
	}
}
