package vm

// shareNode is one link of the circular list of sharers a SHARED
// segment lives on (§3). Each participating Segment_t, possibly in a
// different address space, holds one shareNode; when a ring drops to a
// single member, that member leaves the ring and its FSHARED is cleared.
type shareNode struct {
	seg        *Segment_t
	prev, next *shareNode
}

// shareJoin links b into a's share ring, creating the ring on a first if
// a is not already shared. Sets FSHARED on both segments.
func shareJoin(a, b *Segment_t) {
	if a.shareNode == nil {
		an := &shareNode{seg: a}
		an.prev, an.next = an, an
		a.shareNode = an
		a.Flags |= FSHARED
	}
	an := a.shareNode
	bn := &shareNode{seg: b}
	tail := an.prev
	tail.next = bn
	bn.prev = tail
	bn.next = an
	an.prev = bn
	b.shareNode = bn
	b.Flags |= FSHARED
}

// shareLeave removes seg from its share ring. It reports whether seg
// was the ring's last member, in which case the caller now holds the
// only reference to the backing pages and FSHARED has been cleared.
func shareLeave(seg *Segment_t) bool {
	n := seg.shareNode
	if n == nil {
		return true
	}
	seg.shareNode = nil
	seg.Flags &^= FSHARED
	if n.next == n {
		return true
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	if rest := n.next; rest.next == rest {
		// a ring of one is not a share: the member left behind owns
		// its pages outright again
		rest.seg.shareNode = nil
		rest.seg.Flags &^= FSHARED
	}
	return false
}
