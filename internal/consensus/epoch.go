package consensus

// EpochOf returns the epoch index a block at height belongs to.
func EpochOf(height uint64, epochBlocks uint64) uint64 {
	return height / epochBlocks
}

// IsEpochBoundary reports whether height is the first block of a new
// epoch, the point at which the committee rotates.
func IsEpochBoundary(height uint64, epochBlocks uint64) bool {
	return height%epochBlocks == 0
}
