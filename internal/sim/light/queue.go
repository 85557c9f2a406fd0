package light

type entry struct {
	x, y, z int16
	light   int8
}

// ring is a growable FIFO. Capacity stays a power of two so wrapping is a mask.
type ring struct {
	buf  []entry
	head int
	n    int
}

func (r *ring) push(e entry) {
	if r.n == len(r.buf) {
		r.grow()
	}
	r.buf[(r.head+r.n)&(len(r.buf)-1)] = e
	r.n++
}

func (r *ring) pop() (entry, bool) {
	if r.n == 0 {
		return entry{}, false
	}
	e := r.buf[r.head]
	r.head = (r.head + 1) & (len(r.buf) - 1)
	r.n--
	return e, true
}

func (r *ring) len() int { return r.n }

func (r *ring) reset() {
	r.head = 0
	r.n = 0
}

func (r *ring) grow() {
	size := len(r.buf) * 2
	if size == 0 {
		size = 4096
	}
	buf := make([]entry, size)
	for i := 0; i < r.n; i++ {
		buf[i] = r.buf[(r.head+i)&(len(r.buf)-1)]
	}
	r.buf = buf
	r.head = 0
}
