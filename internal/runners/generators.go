package runners

import (
	"math/rand/v2"

	"github.com/jessegalley/fileserver/internal/engine"
)

// generator produces the offset and direction of the next request
type generator interface {
	next() (offset uint64, dir engine.Direction)
}

// randomGen picks block aligned offsets uniformly in [0, blocks*block)
type randomGen struct {
	rng    *rand.Rand
	blocks uint64
	block  uint64
	rwmix  int // percentage of reads
}

func newRandomGen(seed uint64, size, block uint64, rwmix int) *randomGen {
	return &randomGen{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		blocks: size / block,
		block:  block,
		rwmix:  rwmix,
	}
}

func (g *randomGen) next() (uint64, engine.Direction) {
	offset := g.rng.Uint64N(g.blocks) * g.block

	dir := engine.Write
	if g.rng.IntN(100) < g.rwmix {
		dir = engine.Read
	}

	return offset, dir
}

// sequentialGen walks [start, end) one block at a time and wraps back to
// start once the next block would not fit
type sequentialGen struct {
	start, end uint64
	pos        uint64
	block      uint64
	dir        engine.Direction
}

func newSequentialGen(start, end, block uint64, dir engine.Direction) *sequentialGen {
	return &sequentialGen{
		start: start,
		end:   end,
		pos:   start,
		block: block,
		dir:   dir,
	}
}

func (g *sequentialGen) next() (uint64, engine.Direction) {
	offset := g.pos

	g.pos += g.block
	if g.pos+g.block > g.end {
		g.pos = g.start
	}

	return offset, g.dir
}

// jobRange returns the block aligned slice of [0, size) owned by job id of n
func jobRange(id, n int, size, block uint64) (start, end uint64) {
	blocks := size / block
	start = blocks * uint64(id) / uint64(n) * block
	end = blocks * uint64(id+1) / uint64(n) * block
	return start, end
}
