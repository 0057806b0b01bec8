package video

// Select drains the buffer and picks representative frames by buffer length:
//
//	0    → none
//	1–2  → most recent
//	3–4  → first, most recent
//	≥5   → first, middle (index N/2), most recent
//
// The picked frames are delivered most-recent first so the freshest visual
// state leads the model context. Repeated calls on an empty buffer return
// nil.
func Select(buf *Buffer) []PositionedFrame {
	return pick(buf.Drain())
}

func pick(frames []Frame) []PositionedFrame {
	n := len(frames)
	if n == 0 {
		return nil
	}

	var chosen []PositionedFrame
	if n >= 3 {
		chosen = append(chosen, PositionedFrame{Position: PositionFirst, Frame: frames[0]})
		if n >= 5 {
			chosen = append(chosen, PositionedFrame{Position: PositionMiddle, Frame: frames[n/2]})
		}
	}
	chosen = append(chosen, PositionedFrame{Position: PositionMostRecent, Frame: frames[n-1]})

	// reverse into delivery order, most recent first
	for i, j := 0, len(chosen)-1; i < j; i, j = i+1, j-1 {
		chosen[i], chosen[j] = chosen[j], chosen[i]
	}
	return chosen
}
