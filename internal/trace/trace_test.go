package trace

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shortTrace = `20000
3
6
1
a 0 512
a 1 128

r 0 640
f 1
a 2 16
f 0
`

func TestParse_Short(t *testing.T) {
	tr, err := Parse(strings.NewReader(shortTrace))
	require.NoError(t, err)

	require.Equal(t, 20000, tr.SuggestedHeap)
	require.Equal(t, 3, tr.NumIDs)
	require.Equal(t, 1, tr.Weight)
	require.Equal(t, []Op{
		{Kind: OpAlloc, ID: 0, Size: 512},
		{Kind: OpAlloc, ID: 1, Size: 128},
		{Kind: OpRealloc, ID: 0, Size: 640},
		{Kind: OpFree, ID: 1},
		{Kind: OpAlloc, ID: 2, Size: 16},
		{Kind: OpFree, ID: 0},
	}, tr.Ops)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		msg   string
	}{
		{"empty", "", "missing suggested heap size"},
		{"short header", "1\n2\n", "missing number of ops"},
		{"bad header", "x\n", "bad suggested heap size"},
		{"two header fields", "1 2\n", "expected suggested heap size"},
		{"unknown op", "0\n1\n1\n1\nx 0 1\n", "unknown op"},
		{"free with size", "0\n1\n1\n1\nf 0 8\n", "takes 1 operands"},
		{"alloc without size", "0\n1\n1\n1\na 0\n", "takes 2 operands"},
		{"id out of range", "0\n1\n1\n1\na 1 8\n", "outside [0, 1)"},
		{"negative size", "0\n1\n1\n1\na 0 -8\n", "bad size"},
		{"too many ops", "0\n1\n1\n1\na 0 8\nf 0\n", "more ops than the 1 declared"},
		{"too few ops", "0\n1\n2\n1\na 0 8\n", "declares 2 ops, found 1"},
		{"too many ids", "0\n1000000000000000\n0\n1\n", "number of ids 1000000000000000 exceeds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.ErrorIs(t, err, ErrSyntax)
			require.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestParse_MaxIDs(t *testing.T) {
	src := fmt.Sprintf("0\n%d\n1\n1\na %d 8\n", MaxIDs, MaxIDs-1)
	tr, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, MaxIDs, tr.NumIDs)

	_, err = Parse(strings.NewReader(fmt.Sprintf("0\n%d\n0\n1\n", MaxIDs+1)))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 2, pe.Line)
}

func TestIDSpan(t *testing.T) {
	tr := &Trace{NumIDs: math.MaxInt, Ops: []Op{
		{Kind: OpAlloc, ID: 3, Size: 8},
		{Kind: OpAlloc, ID: 7, Size: 8},
		{Kind: OpFree, ID: 3},
	}}
	require.Equal(t, 8, tr.IDSpan())

	tr.NumIDs = 5
	require.Equal(t, 4, tr.IDSpan(), "ids outside the declared range are ignored")
	require.Zero(t, (&Trace{NumIDs: 10}).IDSpan())
}

func TestParse_ErrorLine(t *testing.T) {
	_, err := Parse(strings.NewReader("0\n2\n2\n1\na 0 8\n\nq 1 8\n"))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, 7, pe.Line)
}

func TestWrite_RoundTrip(t *testing.T) {
	tr, err := Parse(strings.NewReader(shortTrace))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tr))
	require.Equal(t, strings.ReplaceAll(shortTrace, "\n\n", "\n"), buf.String())
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "a 3 24", Op{Kind: OpAlloc, ID: 3, Size: 24}.String())
	assert.Equal(t, "f 3", Op{Kind: OpFree, ID: 3}.String())
	assert.Equal(t, "realloc", OpRealloc.String())
	assert.Equal(t, "OpKind('z')", OpKind('z').String())
}

func TestCompressionFor(t *testing.T) {
	assert.Equal(t, CompressNone, CompressionFor("short1.rep"))
	assert.Equal(t, CompressZstd, CompressionFor("traces/big.rep.zst"))
	assert.Equal(t, CompressZstd, CompressionFor("big.ZSTD"))
	assert.Equal(t, CompressLZ4, CompressionFor("big.rep.lz4"))
}

func TestSaveOpen_AllContainers(t *testing.T) {
	tr := Generate(GenOptions{Ops: 500, Seed: 7})
	dir := t.TempDir()

	for _, name := range []string{"gen.rep", "gen.rep.zst", "gen.rep.lz4"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Save(path, tr))

			got, err := Open(path)
			require.NoError(t, err)
			require.Equal(t, name, got.Name)
			require.Equal(t, tr.Ops, got.Ops)
			require.Equal(t, tr.NumIDs, got.NumIDs)
			require.Equal(t, tr.SuggestedHeap, got.SuggestedHeap)
		})
	}

	plain, err := os.Stat(filepath.Join(dir, "gen.rep"))
	require.NoError(t, err)
	packed, err := os.Stat(filepath.Join(dir, "gen.rep.zst"))
	require.NoError(t, err)
	require.Less(t, packed.Size(), plain.Size())
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.rep"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpen_CorruptCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.rep.zst")
	require.NoError(t, os.WriteFile(path, []byte("not zstd at all"), 0o600))
	_, err := Open(path)
	require.Error(t, err)
}

func TestGenerate_WellFormed(t *testing.T) {
	tr := Generate(GenOptions{Ops: 2000, MaxSize: 10000, Seed: 42})

	require.LessOrEqual(t, tr.NumIDs, 2000)
	require.InDelta(t, 2000, len(tr.Ops), 1)

	state := make(map[int]string)
	for i, op := range tr.Ops {
		require.Less(t, op.ID, tr.NumIDs)
		switch op.Kind {
		case OpAlloc:
			require.Empty(t, state[op.ID], "op %d: id %d allocated twice", i, op.ID)
			require.Positive(t, op.Size)
			require.LessOrEqual(t, op.Size, 10000)
			state[op.ID] = "live"
		case OpRealloc:
			require.Equal(t, "live", state[op.ID], "op %d", i)
		case OpFree:
			require.Equal(t, "live", state[op.ID], "op %d", i)
			state[op.ID] = "dead"
		}
	}
	for id, s := range state {
		require.Equal(t, "dead", s, "id %d never released", id)
	}
	require.Positive(t, tr.SuggestedHeap)
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(GenOptions{Ops: 300, Seed: 9})
	b := Generate(GenOptions{Ops: 300, Seed: 9})
	c := Generate(GenOptions{Ops: 300, Seed: 10})
	require.Equal(t, a, b)
	require.NotEqual(t, a.Ops, c.Ops)
}

func TestGenerate_RunsOutOfIDs(t *testing.T) {
	tr := Generate(GenOptions{Ops: 1000, IDs: 3, Seed: 1})
	require.Equal(t, 3, tr.NumIDs)
	require.Less(t, len(tr.Ops), 1000)
}

func FuzzParse(f *testing.F) {
	f.Add([]byte(shortTrace))
	f.Add([]byte("0\n1\n1\n1\nf 0\n"))
	f.Add([]byte("1\n1\n1\n1\na 0 99999999999999999999\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		tr, err := Parse(bytes.NewReader(data))
		if err != nil {
			return
		}
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, tr))
		again, err := Parse(&buf)
		require.NoError(t, err)
		require.Equal(t, tr.Ops, again.Ops)
		require.Equal(t, tr.NumIDs, again.NumIDs)
	})
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.rep.lz4")
	require.NoError(t, Save(path, Generate(GenOptions{Ops: 50, Seed: 1})))
	require.NoError(t, Save(path, Generate(GenOptions{Ops: 80, Seed: 2})))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, Generate(GenOptions{Ops: 80, Seed: 2}).Ops, got.Ops)
}

func TestSave_MissingDirectory(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "missing", "out.rep"), &Trace{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCompressionString(t *testing.T) {
	assert.Equal(t, "zstd", CompressZstd.String())
	assert.Equal(t, "Compression(9)", Compression(9).String())
}
