package txcache_test

import (
	"errors"
	"testing"

	"github.com/calvinalkan/txcache/pkg/txcache"
)

var (
	vA = txcache.ValueFromString("a")
	vB = txcache.ValueFromString("b")
	vC = txcache.ValueFromString("c")
	vX = txcache.Absent
)

func Test_Access_WriteValue_Follows_Transition_Table(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		start txcache.Access
		write txcache.Value
		want  txcache.Access
	}{
		{"ReadThenDifferentWrite", txcache.ReadAccess(vA), vB, txcache.ReadThenWriteAccess(vA, vB)},
		{"ReadThenSameWrite", txcache.ReadAccess(vA), vA, txcache.ReadAccess(vA)},
		{"ReadAbsentThenDelete", txcache.ReadAccess(vX), vX, txcache.ReadAccess(vX)},
		{"ReadThenWriteOverwritten", txcache.ReadThenWriteAccess(vA, vB), vC, txcache.ReadThenWriteAccess(vA, vC)},
		{"ReadThenWriteResetToOriginal", txcache.ReadThenWriteAccess(vA, vB), vA, txcache.ReadAccess(vA)},
		{"ReadThenWriteDeleted", txcache.ReadThenWriteAccess(vA, vB), vX, txcache.ReadThenWriteAccess(vA, vX)},
		{"WriteOverwritten", txcache.WriteAccess(vA), vB, txcache.WriteAccess(vB)},
		{"WriteSameValue", txcache.WriteAccess(vA), vA, txcache.WriteAccess(vA)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got := testCase.start.WriteValue(testCase.write)
			if got != testCase.want {
				t.Errorf("got=%s, want=%s", got, testCase.want)
			}

			if last := got.LastValue(); last != testCase.write {
				t.Errorf("LastValue=%s, want last write %s", last, testCase.write)
			}
		})
	}
}

func Test_Access_LastValue_Returns_Authoritative_Value(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		access txcache.Access
		want   txcache.Value
	}{
		{txcache.ReadAccess(vA), vA},
		{txcache.ReadThenWriteAccess(vA, vB), vB},
		{txcache.WriteAccess(vC), vC},
		{txcache.ReadAccess(vX), vX},
	}

	for _, testCase := range testCases {
		if got := testCase.access.LastValue(); got != testCase.want {
			t.Errorf("%s.LastValue()=%s, want=%s", testCase.access, got, testCase.want)
		}
	}
}

func Test_Access_Merge_Succeeds_When_Observations_Agree(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		earlier txcache.Access
		later   txcache.Access
		want    txcache.Access
	}{
		{"ReadRead", txcache.ReadAccess(vA), txcache.ReadAccess(vA), txcache.ReadAccess(vA)},
		{"ReadReadThenWrite", txcache.ReadAccess(vA), txcache.ReadThenWriteAccess(vA, vB), txcache.ReadThenWriteAccess(vA, vB)},
		{"ReadWrite", txcache.ReadAccess(vA), txcache.WriteAccess(vB), txcache.ReadThenWriteAccess(vA, vB)},
		{"ReadThenWriteRead", txcache.ReadThenWriteAccess(vA, vB), txcache.ReadAccess(vB), txcache.ReadThenWriteAccess(vA, vB)},
		{"ReadThenWriteReadThenWrite", txcache.ReadThenWriteAccess(vA, vB), txcache.ReadThenWriteAccess(vB, vC), txcache.ReadThenWriteAccess(vA, vC)},
		{"ReadThenWriteWrite", txcache.ReadThenWriteAccess(vA, vB), txcache.WriteAccess(vC), txcache.ReadThenWriteAccess(vA, vC)},
		{"WriteRead", txcache.WriteAccess(vA), txcache.ReadAccess(vA), txcache.WriteAccess(vA)},
		{"WriteReadThenWrite", txcache.WriteAccess(vA), txcache.ReadThenWriteAccess(vA, vC), txcache.WriteAccess(vC)},
		{"WriteWrite", txcache.WriteAccess(vA), txcache.WriteAccess(vB), txcache.WriteAccess(vB)},
		{"ReadWriteWithoutCheck", txcache.ReadAccess(vA), txcache.WriteAccess(vA), txcache.ReadThenWriteAccess(vA, vA)},
		{"AbsentReads", txcache.ReadAccess(vX), txcache.ReadAccess(vX), txcache.ReadAccess(vX)},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := testCase.earlier.Merge(testCase.later)
			if err != nil {
				t.Fatalf("merge: %v", err)
			}

			if got != testCase.want {
				t.Errorf("got=%s, want=%s", got, testCase.want)
			}
		})
	}
}

func Test_Access_Merge_Returns_Conflict_When_Observations_Disagree(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		earlier  txcache.Access
		later    txcache.Access
		sentinel error
		conflict txcache.MergeConflict
		left     txcache.Value
		right    txcache.Value
	}{
		{"ReadRead", txcache.ReadAccess(vA), txcache.ReadAccess(vB), txcache.ErrReadThenRead, txcache.ReadThenRead, vA, vB},
		{"ReadReadThenWrite", txcache.ReadAccess(vA), txcache.ReadThenWriteAccess(vB, vC), txcache.ErrReadThenRead, txcache.ReadThenRead, vA, vB},
		{"ReadAbsentVsPresent", txcache.ReadAccess(vX), txcache.ReadAccess(vA), txcache.ErrReadThenRead, txcache.ReadThenRead, vX, vA},
		{"ReadThenWriteRead", txcache.ReadThenWriteAccess(vA, vB), txcache.ReadAccess(vA), txcache.ErrWriteThenRead, txcache.WriteThenRead, vB, vA},
		{"ReadThenWriteReadThenWrite", txcache.ReadThenWriteAccess(vA, vB), txcache.ReadThenWriteAccess(vC, vA), txcache.ErrWriteThenRead, txcache.WriteThenRead, vB, vC},
		{"WriteRead", txcache.WriteAccess(vA), txcache.ReadAccess(vB), txcache.ErrWriteThenRead, txcache.WriteThenRead, vA, vB},
		{"WriteReadThenWrite", txcache.WriteAccess(vA), txcache.ReadThenWriteAccess(vB, vC), txcache.ErrWriteThenRead, txcache.WriteThenRead, vA, vB},
		{"DeleteThenRead", txcache.WriteAccess(vX), txcache.ReadAccess(vA), txcache.ErrWriteThenRead, txcache.WriteThenRead, vX, vA},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := testCase.earlier.Merge(testCase.later)
			if !errors.Is(err, testCase.sentinel) {
				t.Fatalf("err=%v, want %v", err, testCase.sentinel)
			}

			var mergeErr *txcache.MergeError
			if !errors.As(err, &mergeErr) {
				t.Fatalf("err=%T, want *txcache.MergeError", err)
			}

			if mergeErr.Conflict != testCase.conflict || mergeErr.Left != testCase.left || mergeErr.Right != testCase.right {
				t.Errorf("conflict=%s left=%s right=%s, want %s left=%s right=%s",
					mergeErr.Conflict, mergeErr.Left, mergeErr.Right,
					testCase.conflict, testCase.left, testCase.right)
			}

			if got != testCase.earlier {
				t.Errorf("failed merge returned %s, want receiver %s unchanged", got, testCase.earlier)
			}
		})
	}
}

func Test_Access_Merge_Matches_Single_Scope_Execution(t *testing.T) {
	t.Parallel()

	// Reading a, writing b in one scope, then reading b and writing c in the
	// next, must look like one scope that read a and wrote c.
	first := txcache.ReadAccess(vA).WriteValue(vB)
	second := txcache.ReadAccess(vB).WriteValue(vC)

	merged, err := first.Merge(second)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	single := txcache.ReadAccess(vA).WriteValue(vB).WriteValue(vC)
	if merged != single {
		t.Errorf("merged=%s, single scope=%s", merged, single)
	}
}

func Test_Access_Accessors_Report_Halves(t *testing.T) {
	t.Parallel()

	rtw := txcache.ReadThenWriteAccess(vA, vB)

	if orig, ok := rtw.Original(); !ok || orig != vA {
		t.Errorf("Original()=(%s, %t), want (%s, true)", orig, ok, vA)
	}

	if written, ok := rtw.Written(); !ok || written != vB {
		t.Errorf("Written()=(%s, %t), want (%s, true)", written, ok, vB)
	}

	if _, ok := txcache.WriteAccess(vA).Original(); ok {
		t.Errorf("blind write has no original")
	}

	if _, ok := txcache.ReadAccess(vA).Written(); ok {
		t.Errorf("pure read has no write")
	}

	if got, want := rtw.Kind(), txcache.KindReadThenWrite; got != want {
		t.Errorf("Kind()=%s, want=%s", got, want)
	}

	if got, want := rtw.String(), `ReadThenWrite("a" -> "b")`; got != want {
		t.Errorf("String()=%q, want=%q", got, want)
	}
}

func Test_Access_Panics_When_Zero(t *testing.T) {
	t.Parallel()

	var zero txcache.Access

	testCases := map[string]func(){
		"LastValue":   func() { _ = zero.LastValue() },
		"MergeZero":   func() { _, _ = zero.Merge(txcache.ReadAccess(vA)) },
		"MergeIntoOK": func() { _, _ = txcache.ReadAccess(vA).Merge(zero) },
	}

	for name, fn := range testCases {
		if !panics(fn) {
			t.Errorf("%s: did not panic", name)
		}
	}
}
