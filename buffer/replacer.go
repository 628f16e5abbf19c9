package buffer

// Replacer tracks which frames may be reclaimed and picks eviction victims.
// Frames start out untracked; RecordAccess registers an access and
// SetEvictable moves the frame in and out of the candidate set. A frame with
// a pinned page must be kept non-evictable by the caller.
type Replacer interface {
	// RecordAccess notes a use of the frame at the current timestamp.
	RecordAccess(frameID int)

	// SetEvictable marks or unmarks the frame as an eviction candidate. It is
	// a no-op for frames that were never accessed.
	SetEvictable(frameID int, evictable bool)

	// Evict removes and returns the best victim among evictable frames,
	// clearing its access history. ok is false when there is no candidate.
	Evict() (frameID int, ok bool)

	// Remove drops an evictable frame and its history from the replacer.
	// Panics when the frame was never accessed or is not evictable.
	Remove(frameID int)

	// Size returns the number of evictable frames.
	Size() int
}
