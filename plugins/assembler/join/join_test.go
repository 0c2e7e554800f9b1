package join

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"ocrclean/pkg/contract"
)

func results(fid contract.FileID, outputs ...string) []contract.SegmentResult {
	rs := make([]contract.SegmentResult, 0, len(outputs))
	for i, o := range outputs {
		rs = append(rs, contract.SegmentResult{Index: contract.Index(i), FileID: fid, Output: o, Corrected: true})
	}
	return rs
}

func TestAssembleJoin(t *testing.T) {
	a, _ := New(nil)
	r, err := a.Assemble(context.Background(), "f", results("f", "one", "two", "three"))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	b, _ := io.ReadAll(r)
	if string(b) != "one\n\ntwo\n\nthree" {
		t.Fatalf("unexpected output: %q", b)
	}
}

func TestAssembleCustomSeparator(t *testing.T) {
	a, err := New(json.RawMessage(`{"separator":"\n"}`))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	r, err := a.Assemble(context.Background(), "f", results("f", "a", "b"))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	b, _ := io.ReadAll(r)
	if string(b) != "a\nb" {
		t.Fatalf("unexpected output: %q", b)
	}
}

func TestAssembleEmpty(t *testing.T) {
	a, _ := New(nil)
	r, err := a.Assemble(context.Background(), "f", nil)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	b, _ := io.ReadAll(r)
	if len(b) != 0 {
		t.Fatalf("expect empty output, got %q", b)
	}
}

func TestAssembleSingle(t *testing.T) {
	a, _ := New(nil)
	r, err := a.Assemble(context.Background(), "f", results("f", "only"))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	b, _ := io.ReadAll(r)
	if string(b) != "only" {
		t.Fatalf("unexpected output: %q", b)
	}
}

func TestAssembleSeqInvalid(t *testing.T) {
	a, _ := New(nil)
	cases := [][]contract.SegmentResult{
		// FileID 混入
		{{Index: 0, FileID: "g", Output: "x"}},
		// 索引缺口
		{{Index: 0, FileID: "f", Output: "x"}, {Index: 2, FileID: "f", Output: "y"}},
		// 非零起始
		{{Index: 1, FileID: "f", Output: "x"}},
	}
	for i, rs := range cases {
		if _, err := a.Assemble(context.Background(), "f", rs); !errors.Is(err, contract.ErrSeqInvalid) {
			t.Fatalf("case %d: want ErrSeqInvalid got %v", i, err)
		}
	}
}

func TestAssembleCancel(t *testing.T) {
	a, _ := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Assemble(ctx, "f", nil); err == nil {
		t.Fatalf("expect ctx error")
	}
}

func TestNewBadOptions(t *testing.T) {
	if _, err := New(json.RawMessage(`{bad`)); err == nil {
		t.Fatalf("bad json should fail")
	}
}
