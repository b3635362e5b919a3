package events

import (
	"encoding/json"
	"testing"
)

func Test_PublishReachesAcquiredSubscriber(t *testing.T) {
	evt := New()
	ch := evt.Acquire("sub-1")
	defer evt.Release("sub-1")

	evt.PublishBlockAppended(BlockAppendedData{BlockHash: "abc", Height: 7, TxCount: 3})

	msg := <-ch
	var got Event
	if err := json.Unmarshal([]byte(msg), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != KindBlockAppended {
		t.Fatalf("kind = %q, want %q", got.Kind, KindBlockAppended)
	}
}

func Test_PublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	evt := New()
	evt.Acquire("sub-1")
	defer evt.Release("sub-1")

	for i := 0; i < messageBuffer+10; i++ {
		evt.PublishReorg(ReorgData{OldTipHash: "a", NewTipHash: "b"})
	}
	// If Publish blocked on a full channel this test would hang and the
	// surrounding test run would time out.
}

func Test_ReleaseUnknownIDErrors(t *testing.T) {
	evt := New()
	if err := evt.Release("never-acquired"); err == nil {
		t.Fatalf("expected error releasing an unacquired id")
	}
}

func Test_ShutdownClosesAllChannels(t *testing.T) {
	evt := New()
	ch := evt.Acquire("sub-1")
	evt.Shutdown()

	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed after Shutdown")
	}
}
