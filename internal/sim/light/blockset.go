package light

// BlockSet is a membership table over block types (the low byte of a cell).
type BlockSet [256]bool

// NewBlockSet builds a set from block ids. Ids that do not fit a block type
// can never match a masked cell and are ignored.
func NewBlockSet(ids []uint16) *BlockSet {
	var s BlockSet
	for _, id := range ids {
		if id > 0xff {
			continue
		}
		s[id] = true
	}
	return &s
}

func (s *BlockSet) Has(block uint8) bool {
	return s != nil && s[block]
}

func (s *BlockSet) IDs() []uint16 {
	if s == nil {
		return nil
	}
	var out []uint16
	for i, ok := range s {
		if ok {
			out = append(out, uint16(i))
		}
	}
	return out
}
