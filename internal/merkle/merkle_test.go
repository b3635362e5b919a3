package merkle_test

import (
	"crypto/sha256"
	"testing"

	"github.com/caiorlm/logichain/internal/merkle"
)

type leaf struct {
	v string
}

func (l leaf) Hash() ([]byte, error) {
	h := sha256.Sum256([]byte(l.v))
	return h[:], nil
}

func (l leaf) Equals(other leaf) bool {
	return l.v == other.v
}

func Test_OddLeafCountDuplicatesLast(t *testing.T) {
	tree, err := merkle.NewTree([]leaf{{"a"}, {"b"}, {"c"}})
	if err != nil {
		t.Fatalf("Should build a tree: %s", err)
	}

	if len(tree.Values()) != 3 {
		t.Fatalf("got %d values, exp 3 (duplicate leaf must not surface)", len(tree.Values()))
	}

	ok, err := tree.Verify()
	if err != nil {
		t.Fatalf("Should verify: %s", err)
	}
	if !ok {
		t.Fatalf("Freshly generated tree should verify")
	}
}

func Test_RootChangesWithContent(t *testing.T) {
	treeA, err := merkle.NewTree([]leaf{{"a"}, {"b"}})
	if err != nil {
		t.Fatalf("Should build tree A: %s", err)
	}

	treeB, err := merkle.NewTree([]leaf{{"a"}, {"c"}})
	if err != nil {
		t.Fatalf("Should build tree B: %s", err)
	}

	if treeA.RootHex() == treeB.RootHex() {
		t.Fatalf("Trees over different leaves must not share a root")
	}
}

func Test_VerifyDataDetectsTamper(t *testing.T) {
	tree, err := merkle.NewTree([]leaf{{"a"}, {"b"}, {"c"}, {"d"}})
	if err != nil {
		t.Fatalf("Should build a tree: %s", err)
	}

	ok, err := tree.VerifyData(leaf{"b"})
	if err != nil {
		t.Fatalf("Should verify data: %s", err)
	}
	if !ok {
		t.Fatalf("Leaf present in the tree should verify")
	}

	tree.Root.Hash = []byte{0xff}
	ok, err = tree.VerifyData(leaf{"b"})
	if err != nil {
		t.Fatalf("Should verify data: %s", err)
	}
	if ok {
		t.Fatalf("Tampered root must fail verification")
	}
}

func Test_ProofWalksToRoot(t *testing.T) {
	tree, err := merkle.NewTree([]leaf{{"a"}, {"b"}, {"c"}, {"d"}})
	if err != nil {
		t.Fatalf("Should build a tree: %s", err)
	}

	path, index, err := tree.Proof(leaf{"c"})
	if err != nil {
		t.Fatalf("Should produce a proof: %s", err)
	}
	if len(path) == 0 || len(path) != len(index) {
		t.Fatalf("Proof path/index length mismatch: %d vs %d", len(path), len(index))
	}
}
