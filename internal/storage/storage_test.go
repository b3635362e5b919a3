package storage

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/caiorlm/logichain/internal/consensus"
	"github.com/caiorlm/logichain/internal/contract"
	"github.com/caiorlm/logichain/internal/coordgrid"
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/caiorlm/logichain/internal/money"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "logichain-storage-*")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func Test_ManifestRoundTrip(t *testing.T) {
	dir := tempDir(t)
	var tip [32]byte
	tip[0] = 0xAB

	m := &Manifest{
		SchemaVersion:        SchemaVersion,
		TipHash:              tip,
		TipHeight:            42,
		TipCumulativeWorkDec: big.NewInt(123456).String(),
		CurrentSegment:       3,
	}
	if err := WriteManifestAtomic(dir, m); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	got, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if got.TipHeight != 42 || got.CurrentSegment != 3 {
		t.Fatalf("unexpected manifest: %+v", got)
	}
	if got.TipHash != tip {
		t.Fatalf("tip hash not restored: got %x want %x", got.TipHash, tip)
	}
	if got.CumulativeWork().Cmp(big.NewInt(123456)) != 0 {
		t.Fatalf("cumulative work mismatch: %s", got.CumulativeWork())
	}
}

func Test_ManifestMissingIsNotExist(t *testing.T) {
	dir := tempDir(t)
	if _, err := ReadManifest(dir); !os.IsNotExist(err) {
		t.Fatalf("expected os.IsNotExist, got %v", err)
	}
}

func Test_SegmentsAppendAndRead(t *testing.T) {
	dir := tempDir(t)
	segs, err := Open(dir, 0, SegmentMaxBytesDefault)
	if err != nil {
		t.Fatalf("open segments: %v", err)
	}
	defer segs.Close()

	payloads := [][]byte{
		[]byte("genesis-block-bytes"),
		[]byte("second-block-bytes-longer-than-first"),
		[]byte("third"),
	}

	var locs []Location
	for _, p := range payloads {
		loc, err := segs.Append(p)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		locs = append(locs, loc)
	}

	for i, loc := range locs {
		got, err := segs.Read(loc)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if string(got) != string(payloads[i]) {
			t.Fatalf("read %d mismatch: got %q want %q", i, got, payloads[i])
		}
	}
}

func Test_SegmentsRotateAtCap(t *testing.T) {
	dir := tempDir(t)
	// A tiny cap forces rotation after the first frame.
	segs, err := Open(dir, 0, 16)
	if err != nil {
		t.Fatalf("open segments: %v", err)
	}
	defer segs.Close()

	loc1, err := segs.Append([]byte("abcdefgh"))
	if err != nil {
		t.Fatalf("append 1: %v", err)
	}
	loc2, err := segs.Append([]byte("ijklmnop"))
	if err != nil {
		t.Fatalf("append 2: %v", err)
	}
	if loc1.Segment == loc2.Segment {
		t.Fatalf("expected rotation to a new segment, both at %d", loc1.Segment)
	}
	if segs.CurrentSegment() != loc2.Segment {
		t.Fatalf("current segment %d does not match last append %d", segs.CurrentSegment(), loc2.Segment)
	}
}

func Test_ReplaySegment(t *testing.T) {
	dir := tempDir(t)
	segs, err := Open(dir, 0, SegmentMaxBytesDefault)
	if err != nil {
		t.Fatalf("open segments: %v", err)
	}

	want := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, w := range want {
		if _, err := segs.Append(w); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := segs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var got [][]byte
	err = ReplaySegment(dir, 0, func(loc Location, blockBytes []byte) error {
		cp := make([]byte, len(blockBytes))
		copy(cp, blockBytes)
		got = append(got, cp)
		return nil
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("replayed %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if string(got[i]) != string(want[i]) {
			t.Fatalf("frame %d mismatch: got %q want %q", i, got[i], want[i])
		}
	}
}

func Test_IndexAccountRoundTrip(t *testing.T) {
	dir := tempDir(t)
	idx, err := OpenIndex(dir + "/index.bolt")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	var addr crypto.Address
	addr[0] = 0x11
	acct := ledger.NewAccount(addr, money.FromUnits(1000), 1700000000)
	acct.Nonce = 7

	if err := idx.PutAccount(acct); err != nil {
		t.Fatalf("put account: %v", err)
	}
	got, ok, err := idx.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !ok {
		t.Fatalf("account not found")
	}
	if got.Nonce != 7 || got.Balance.Cmp(money.FromUnits(1000)) != 0 {
		t.Fatalf("account mismatch: %+v", got)
	}
}

func Test_IndexCellRoundTrip(t *testing.T) {
	dir := tempDir(t)
	idx, err := OpenIndex(dir + "/index.bolt")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	grid := coordgrid.NewGrid(60)
	cell, err := grid.CellAt(40.7, -74.0)
	if err != nil {
		t.Fatalf("cell at: %v", err)
	}
	snap := cell.Snapshot()
	snap.Successes = 5

	if err := idx.PutCell(snap); err != nil {
		t.Fatalf("put cell: %v", err)
	}
	got, ok, err := idx.GetCell(snap.Lat, snap.Lng)
	if err != nil {
		t.Fatalf("get cell: %v", err)
	}
	if !ok || got.Successes != 5 {
		t.Fatalf("cell mismatch: ok=%v %+v", ok, got)
	}
}

func Test_UndoRecordRoundTrip(t *testing.T) {
	var addr crypto.Address
	addr[1] = 0x22
	acct := ledger.NewAccount(addr, money.FromUnits(500), 1700000000)
	acct.Nonce = 3

	var contractID [32]byte
	contractID[0] = 0x33
	c := contract.Contract{ID: contractID, State: contract.StateOpen, CreatedAt: 1700000000}

	u := UndoRecord{
		AccountDeltas: []AccountDelta{
			{Address: addr, Before: acct, Existed: true},
		},
		ContractDeltas: []ContractDelta{
			{ID: contractID, Before: c, Existed: true},
		},
		CellDeltas: []CellDelta{
			{Lat: 40, Lng: -74, Before: coordgrid.Cell{Lat: 40, Lng: -74, Successes: 2, LastActivity: time.Unix(1700000000, 0).UTC()}},
		},
	}

	enc, err := encodeUndoRecord(u)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeUndoRecord(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(got.AccountDeltas) != 1 || got.AccountDeltas[0].Before.Nonce != 3 {
		t.Fatalf("account delta mismatch: %+v", got.AccountDeltas)
	}
	if len(got.ContractDeltas) != 1 || got.ContractDeltas[0].Before.State != contract.StateOpen {
		t.Fatalf("contract delta mismatch: %+v", got.ContractDeltas)
	}
	if len(got.CellDeltas) != 1 || got.CellDeltas[0].Before.Successes != 2 {
		t.Fatalf("cell delta mismatch: %+v", got.CellDeltas)
	}
}

func Test_ReorgDisconnectsAndReconnects(t *testing.T) {
	dir := tempDir(t)
	idx, err := OpenIndex(dir + "/index.bolt")
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()
	segs, err := Open(dir, 0, SegmentMaxBytesDefault)
	if err != nil {
		t.Fatalf("open segments: %v", err)
	}
	defer segs.Close()

	var genesis, tipA, tipB [32]byte
	genesis[0], tipA[0], tipB[0] = 1, 2, 3

	mustIndex := func(hash [32]byte, height uint64, parent [32]byte, work int64) {
		loc, err := segs.Append([]byte{byte(height)})
		if err != nil {
			t.Fatalf("append block %x: %v", hash, err)
		}
		if err := idx.PutBlockLocation(hash, loc); err != nil {
			t.Fatalf("put location: %v", err)
		}
		if err := idx.PutBlockIndexEntry(hash, BlockIndexEntry{
			Height: height, ParentHash: parent, CumulativeWork: big.NewInt(work), Status: BlockStatusValid,
		}); err != nil {
			t.Fatalf("put index entry: %v", err)
		}
		if err := idx.PutHeightToHash(height, hash); err != nil {
			t.Fatalf("put height: %v", err)
		}
	}

	mustIndex(genesis, 0, [32]byte{}, 0)
	mustIndex(tipA, 1, genesis, 10)

	var addr crypto.Address
	addr[0] = 9
	before := ledger.NewAccount(addr, money.FromUnits(100), 1700000000)
	if err := idx.PutAccount(before); err != nil {
		t.Fatalf("put account: %v", err)
	}
	if err := idx.PutUndo(tipA, UndoRecord{AccountDeltas: []AccountDelta{{Address: addr, Before: before, Existed: true}}}); err != nil {
		t.Fatalf("put undo: %v", err)
	}

	after := before
	after.Nonce = 1
	if err := idx.PutAccount(after); err != nil {
		t.Fatalf("apply forward mutation: %v", err)
	}

	mustIndex(tipB, 1, genesis, 20)

	reorg := NewReorg(dir, idx, segs, consensus.DefaultConfig())
	applyForward := func(idx *Index, hash [32]byte, blockBytes []byte) (UndoRecord, error) {
		return UndoRecord{}, nil
	}

	m, err := reorg.ReorgTo(tipA, 1, tipB, applyForward)
	if err != nil {
		t.Fatalf("reorg: %v", err)
	}
	if m.TipHeight != 1 {
		t.Fatalf("unexpected tip height after reorg: %d", m.TipHeight)
	}

	got, ok, err := idx.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !ok {
		t.Fatalf("account should still exist (it existed before tipA too)")
	}
	if got.Nonce != 0 {
		t.Fatalf("disconnect did not restore prior nonce: got %d", got.Nonce)
	}

	entryA, _, err := idx.GetBlockIndexEntry(tipA)
	if err != nil {
		t.Fatalf("get index entry: %v", err)
	}
	if entryA.Status != BlockStatusOrphaned {
		t.Fatalf("tipA should be orphaned after reorg, got %v", entryA.Status)
	}
}
