package joystick

// ButtonSet is a set of buttons, one bit per Button.
type ButtonSet uint64

// Has reports whether b is in the set.
func (s ButtonSet) Has(b Button) bool {
	if b < 0 || b >= 64 {
		return false
	}
	return s&(1<<uint(b)) != 0
}

// Add returns s with b included.
func (s ButtonSet) Add(b Button) ButtonSet {
	if b < 0 || b >= 64 {
		return s
	}
	return s | 1<<uint(b)
}

// EdgeDetector turns level button state into rising edges by comparing each
// frame with the previous one. Holding a button produces a single edge.
//
// The first frame only primes the detector, so a button that is already held
// when the gamepad connects does not fire.
type EdgeDetector struct {
	prev   ButtonSet
	primed bool
}

// Update records f and returns the buttons that went from released to
// pressed since the previous call.
func (d *EdgeDetector) Update(f Frame) ButtonSet {
	var cur ButtonSet
	for i := range f.Buttons {
		if i >= 64 {
			break
		}
		if f.Buttons[i] != 0 {
			cur = cur.Add(Button(i))
		}
	}

	if !d.primed {
		d.primed = true
		d.prev = cur
		return 0
	}

	rising := cur &^ d.prev
	d.prev = cur
	return rising
}
