package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxLine bounds a single trace line; real lines are a few dozen bytes.
const maxLine = 1 << 16

// MaxIDs bounds the id count a trace header may declare. Replay keeps one
// slot per id.
const MaxIDs = 1 << 24

// headerFields are the four leading numbers of a trace, in order.
var headerFields = [...]string{"suggested heap size", "number of ids", "number of ops", "weight"}

// Parse reads a trace from r. Blank lines are ignored. The op count in the
// header must match the ops that follow, and every id must be below the
// declared id count.
func Parse(r io.Reader) (*Trace, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)

	var (
		t      Trace
		header [len(headerFields)]int
		nhdr   int
		numOps int
		line   int
	)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		if nhdr < len(header) {
			if len(fields) != 1 {
				return nil, &ParseError{Line: line, Msg: "expected " + headerFields[nhdr]}
			}
			v, err := strconv.Atoi(fields[0])
			if err != nil || v < 0 {
				return nil, &ParseError{Line: line, Msg: fmt.Sprintf("bad %s %q", headerFields[nhdr], fields[0])}
			}
			header[nhdr] = v
			nhdr++
			if nhdr == len(header) {
				t.SuggestedHeap, t.NumIDs, numOps, t.Weight = header[0], header[1], header[2], header[3]
				if t.NumIDs > MaxIDs {
					return nil, &ParseError{Line: line, Msg: fmt.Sprintf("number of ids %d exceeds %d", t.NumIDs, MaxIDs)}
				}
				t.Ops = make([]Op, 0, min(numOps, 1<<20))
			}
			continue
		}

		op, err := parseOp(fields, t.NumIDs)
		if err != nil {
			return nil, &ParseError{Line: line, Msg: err.Error()}
		}
		if len(t.Ops) == numOps {
			return nil, &ParseError{Line: line, Msg: fmt.Sprintf("more ops than the %d declared", numOps)}
		}
		t.Ops = append(t.Ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("trace: read: %w", err)
	}
	if nhdr < len(header) {
		return nil, &ParseError{Line: line, Msg: "missing " + headerFields[nhdr]}
	}
	if len(t.Ops) != numOps {
		return nil, &ParseError{Line: line, Msg: fmt.Sprintf("header declares %d ops, found %d", numOps, len(t.Ops))}
	}
	return &t, nil
}

func parseOp(fields []string, numIDs int) (Op, error) {
	if len(fields[0]) != 1 {
		return Op{}, fmt.Errorf("unknown op %q", fields[0])
	}
	op := Op{Kind: OpKind(fields[0][0])}

	want := 3
	switch op.Kind {
	case OpAlloc, OpRealloc:
	case OpFree:
		want = 2
	default:
		return Op{}, fmt.Errorf("unknown op %q", fields[0])
	}
	if len(fields) != want {
		return Op{}, fmt.Errorf("%s takes %d operands, got %d", op.Kind, want-1, len(fields)-1)
	}

	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 || id >= numIDs {
		return Op{}, fmt.Errorf("id %q outside [0, %d)", fields[1], numIDs)
	}
	op.ID = id

	if want == 3 {
		size, err := strconv.Atoi(fields[2])
		if err != nil || size < 0 {
			return Op{}, fmt.Errorf("bad size %q", fields[2])
		}
		op.Size = size
	}
	return op, nil
}

// Write encodes t in trace format. The header op count is len(t.Ops).
func Write(w io.Writer, t *Trace) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n%d\n%d\n%d\n", t.SuggestedHeap, t.NumIDs, len(t.Ops), t.Weight)
	for _, op := range t.Ops {
		bw.WriteString(op.String())
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
