package txcache_test

import (
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/txcache/pkg/txcache"
)

func Test_Log_RecordRead_Is_Idempotent_When_Value_Repeats(t *testing.T) {
	t.Parallel()

	var log txcache.Log

	key := txcache.NewCacheKey("k")

	for range 3 {
		mustOK(t, log.RecordRead(key, vA))
	}

	access, ok := log.Access(key)
	if !ok || access != txcache.ReadAccess(vA) {
		t.Errorf("access=(%s, %t), want (%s, true)", access, ok, txcache.ReadAccess(vA))
	}

	if got, want := log.Len(), 1; got != want {
		t.Errorf("Len()=%d, want=%d", got, want)
	}
}

func Test_Log_RecordRead_Returns_Inconsistent_Read_When_Value_Differs(t *testing.T) {
	t.Parallel()

	var log txcache.Log

	key := txcache.NewCacheKey("k")
	mustOK(t, log.RecordRead(key, vA))

	err := log.RecordRead(key, vB)
	mustIs(t, err, txcache.ErrInconsistentRead)

	var readErr *txcache.ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("err=%T, want *txcache.ReadError", err)
	}

	if readErr.Key != key || readErr.Expected != vA || readErr.Found != vB {
		t.Errorf("ReadError=%+v, want key=k expected=a found=b", *readErr)
	}

	if access, _ := log.Access(key); access != txcache.ReadAccess(vA) {
		t.Errorf("failed read changed the log: %s", access)
	}
}

func Test_Log_RecordRead_Checks_Against_Last_Write(t *testing.T) {
	t.Parallel()

	var log txcache.Log

	key := txcache.NewCacheKey("k")
	log.RecordWrite(key, vA)

	mustOK(t, log.RecordRead(key, vA))
	mustIs(t, log.RecordRead(key, vB), txcache.ErrInconsistentRead)
	mustIs(t, log.RecordRead(key, vX), txcache.ErrInconsistentRead)

	if access, _ := log.Access(key); access != txcache.WriteAccess(vA) {
		t.Errorf("access=%s, want read after write discarded", access)
	}
}

func Test_Log_RecordWrite_Last_Write_Wins(t *testing.T) {
	t.Parallel()

	key := txcache.NewCacheKey("k")

	var twice, once txcache.Log

	twice.RecordWrite(key, vA)
	twice.RecordWrite(key, vB)
	once.RecordWrite(key, vB)

	gotTwice, _ := twice.Access(key)
	gotOnce, _ := once.Access(key)

	if gotTwice != gotOnce {
		t.Errorf("twice=%s, once=%s", gotTwice, gotOnce)
	}
}

func Test_Log_TakeWrites_Omits_Key_When_Write_Restores_Original(t *testing.T) {
	t.Parallel()

	var log txcache.Log

	key := txcache.NewCacheKey("k")
	mustOK(t, log.RecordRead(key, vA))
	log.RecordWrite(key, vA)
	mustOK(t, log.RecordRead(key, vA))

	if writes := log.TakeWrites(); len(writes) != 0 {
		t.Errorf("writes=%v, want none", writes)
	}

	if !log.IsEmpty() {
		t.Errorf("TakeWrites did not consume the log")
	}
}

func Test_Log_TakeWrites_Returns_Final_Values_Of_Written_Keys(t *testing.T) {
	t.Parallel()

	var log txcache.Log

	mustOK(t, log.RecordRead(txcache.NewCacheKey("read"), vA))
	log.RecordWrite(txcache.NewCacheKey("write"), vB)
	mustOK(t, log.RecordRead(txcache.NewCacheKey("rtw"), vA))
	log.RecordWrite(txcache.NewCacheKey("rtw"), vC)
	log.RecordWrite(txcache.NewCacheKey("deleted"), vX)

	writes := log.TakeWrites()
	slices.SortFunc(writes, func(a, b txcache.Entry) int { return a.Key.Compare(b.Key) })

	want := []txcache.Entry{
		{Key: txcache.NewCacheKey("deleted"), Value: vX},
		{Key: txcache.NewCacheKey("rtw"), Value: vC},
		{Key: txcache.NewCacheKey("write"), Value: vB},
	}

	if diff := cmp.Diff(want, writes, entryCmp); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
}

func Test_Log_Get_Distinguishes_Absent_From_Unknown(t *testing.T) {
	t.Parallel()

	var log txcache.Log

	mustOK(t, log.RecordRead(txcache.NewCacheKey("gone"), vX))

	if v, known := log.Get(txcache.NewCacheKey("gone")); !known || v.Exists() {
		t.Errorf("gone=(%s, %t), want (absent, true)", v, known)
	}

	if _, known := log.Get(txcache.NewCacheKey("never")); known {
		t.Errorf("never is known, want unknown")
	}
}

func Test_Log_MergeLeft_Is_Identity_When_Either_Side_Empty(t *testing.T) {
	t.Parallel()

	build := func() *txcache.Log {
		log := txcache.NewLog(4)
		mustOK(t, log.RecordRead(txcache.NewCacheKey("r"), vA))
		log.RecordWrite(txcache.NewCacheKey("w"), vB)
		mustOK(t, log.RecordRead(txcache.NewCacheKey("rtw"), vA))
		log.RecordWrite(txcache.NewCacheKey("rtw"), vC)

		return log
	}

	left := build()
	mustOK(t, left.MergeLeft(txcache.NewLog(0)))
	diffSnapshot(t, snapshot(build()), snapshot(left))

	right := txcache.NewLog(0)
	mustOK(t, right.MergeLeft(build()))
	diffSnapshot(t, snapshot(build()), snapshot(right))
}

func Test_Log_MergeLeft_Keeps_First_Read_And_Last_Write(t *testing.T) {
	t.Parallel()

	parent := txcache.NewLog(0)
	mustOK(t, parent.RecordRead(txcache.NewCacheKey("k1"), vA))
	parent.RecordWrite(txcache.NewCacheKey("k2"), vB)

	child := txcache.NewLog(0)
	mustOK(t, child.RecordRead(txcache.NewCacheKey("k1"), vA))
	child.RecordWrite(txcache.NewCacheKey("k1"), vC)
	child.RecordWrite(txcache.NewCacheKey("k3"), vC)

	mustOK(t, parent.MergeLeft(child))

	diffSnapshot(t, map[string]txcache.Access{
		"k1": txcache.ReadThenWriteAccess(vA, vC),
		"k2": txcache.WriteAccess(vB),
		"k3": txcache.WriteAccess(vC),
	}, snapshot(parent))

	if !child.IsEmpty() {
		t.Errorf("merged log was not consumed")
	}
}

func Test_Log_MergeLeft_Leaves_Both_Sides_Unchanged_When_Any_Key_Conflicts(t *testing.T) {
	t.Parallel()

	build := func() (*txcache.Log, *txcache.Log) {
		parent := txcache.NewLog(0)
		child := txcache.NewLog(0)

		// Plenty of mergeable keys so a partial merge would be visible.
		for i := range 20 {
			key := txcache.NewCacheKey(fmt.Sprintf("ok-%02d", i))
			mustOK(t, parent.RecordRead(key, vA))
			child.RecordWrite(key, vB)
		}

		parent.RecordWrite(txcache.NewCacheKey("y"), txcache.ValueFromString("1"))
		mustOK(t, child.RecordRead(txcache.NewCacheKey("y"), txcache.ValueFromString("2")))

		return parent, child
	}

	parent, child := build()
	wantParent, wantChild := build()

	err := parent.MergeLeft(child)
	mustIs(t, err, txcache.ErrWriteThenRead)

	var mergeErr *txcache.MergeError
	if !errors.As(err, &mergeErr) {
		t.Fatalf("err=%T, want *txcache.MergeError", err)
	}

	if mergeErr.Key != txcache.NewCacheKey("y") {
		t.Errorf("conflict key=%s, want y", mergeErr.Key)
	}

	if mergeErr.Write() != txcache.ValueFromString("1") || mergeErr.Read() != txcache.ValueFromString("2") {
		t.Errorf("write=%s read=%s, want write=1 read=2", mergeErr.Write(), mergeErr.Read())
	}

	diffSnapshot(t, snapshot(wantParent), snapshot(parent))
	diffSnapshot(t, snapshot(wantChild), snapshot(child))
}

func Test_Log_MergeLeft_Reports_Smallest_Conflicting_Key(t *testing.T) {
	t.Parallel()

	for range 10 {
		parent := txcache.NewLog(0)
		child := txcache.NewLog(0)

		for _, k := range []string{"m", "c", "x", "a", "q"} {
			mustOK(t, parent.RecordRead(txcache.NewCacheKey(k), vA))
			mustOK(t, child.RecordRead(txcache.NewCacheKey(k), vB))
		}

		var mergeErr *txcache.MergeError
		if err := parent.MergeLeft(child); !errors.As(err, &mergeErr) {
			t.Fatalf("err=%v, want *txcache.MergeError", err)
		}

		if mergeErr.Key != txcache.NewCacheKey("a") {
			t.Fatalf("conflict key=%s, want a", mergeErr.Key)
		}
	}
}

func Test_Log_MergeReadsLeft_Keeps_Only_Read_Halves(t *testing.T) {
	t.Parallel()

	parent := txcache.NewLog(0)
	mustOK(t, parent.RecordRead(txcache.NewCacheKey("shared"), vA))

	child := txcache.NewLog(0)
	mustOK(t, child.RecordRead(txcache.NewCacheKey("shared"), vA))
	child.RecordWrite(txcache.NewCacheKey("shared"), vB)
	mustOK(t, child.RecordRead(txcache.NewCacheKey("rtw"), vC))
	child.RecordWrite(txcache.NewCacheKey("rtw"), vA)
	child.RecordWrite(txcache.NewCacheKey("blind"), vB)
	mustOK(t, child.RecordRead(txcache.NewCacheKey("read"), vX))

	mustOK(t, parent.MergeReadsLeft(child))

	diffSnapshot(t, map[string]txcache.Access{
		"shared": txcache.ReadAccess(vA),
		"rtw":    txcache.ReadAccess(vC),
		"read":   txcache.ReadAccess(vX),
	}, snapshot(parent))
}

func Test_Log_MergeReadsLeft_Still_Detects_Conflicts(t *testing.T) {
	t.Parallel()

	parent := txcache.NewLog(0)
	parent.RecordWrite(txcache.NewCacheKey("k"), vA)

	child := txcache.NewLog(0)
	mustOK(t, child.RecordRead(txcache.NewCacheKey("k"), vB))
	child.RecordWrite(txcache.NewCacheKey("k"), vC)

	mustIs(t, parent.MergeReadsLeft(child), txcache.ErrWriteThenRead)
}

func Test_Log_MergeWritesLeft_Keeps_Only_Write_Halves(t *testing.T) {
	t.Parallel()

	parent := txcache.NewLog(0)
	mustOK(t, parent.RecordRead(txcache.NewCacheKey("shared"), vA))

	child := txcache.NewLog(0)
	// This read disagrees with the parent, but only the write half is merged.
	mustOK(t, child.RecordRead(txcache.NewCacheKey("shared"), vB))
	child.RecordWrite(txcache.NewCacheKey("shared"), vC)
	child.RecordWrite(txcache.NewCacheKey("blind"), vB)
	mustOK(t, child.RecordRead(txcache.NewCacheKey("read"), vX))

	mustOK(t, parent.MergeWritesLeft(child))

	diffSnapshot(t, map[string]txcache.Access{
		"shared": txcache.ReadThenWriteAccess(vA, vC),
		"blind":  txcache.WriteAccess(vB),
	}, snapshot(parent))
}

func Test_Log_MergeLeft_Rejects_Self(t *testing.T) {
	t.Parallel()

	log := txcache.NewLog(0)
	log.RecordWrite(txcache.NewCacheKey("k"), vA)

	if err := log.MergeLeft(log); err == nil {
		t.Fatalf("self merge succeeded")
	}

	if got, want := log.Len(), 1; got != want {
		t.Errorf("Len()=%d, want=%d", got, want)
	}
}

func Test_Log_Keys_Are_Sorted(t *testing.T) {
	t.Parallel()

	log := txcache.NewLog(0)
	for _, k := range []string{"b", "c", "a"} {
		log.RecordWrite(txcache.NewCacheKey(k), vA)
	}

	want := []txcache.CacheKey{
		txcache.NewCacheKey("a"),
		txcache.NewCacheKey("b"),
		txcache.NewCacheKey("c"),
	}

	if diff := cmp.Diff(want, log.Keys(), entryCmp); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}
