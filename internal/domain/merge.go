package domain

// Normalize sums lines sharing a key and drops lines with a non-positive quantity
// or an empty product id. The first occurrence of a key fixes its position.
func Normalize(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	index := make(map[LineKey]int, len(lines))
	for _, l := range lines {
		key := l.Key()
		if key.ProductID == "" || l.Quantity <= 0 {
			continue
		}
		if i, ok := index[key]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, CartLine{ProductID: key.ProductID, Size: key.Size, Quantity: l.Quantity})
	}
	return out
}

// Merge adds the lines of local into a copy of server. Quantities of matching
// lines are summed; unmatched local lines are appended. Neither input is modified.
// The result belongs to server's owner. A nil server is treated as empty.
func Merge(server, local *Cart) *Cart {
	var merged *Cart
	if server == nil {
		merged = NewCart("")
	} else {
		merged = server.Clone()
		merged.Lines = Normalize(merged.Lines)
	}
	if local == nil {
		return merged
	}

	index := make(map[LineKey]int, len(merged.Lines))
	for i, l := range merged.Lines {
		index[l.Key()] = i
	}
	for _, l := range Normalize(local.Lines) {
		key := l.Key()
		if i, ok := index[key]; ok {
			merged.Lines[i].Quantity += l.Quantity
			continue
		}
		index[key] = len(merged.Lines)
		merged.Lines = append(merged.Lines, l)
	}
	return merged
}

// Deduct lowers each line of c by the quantity taken from it. Lines that reach
// zero are removed; lines of taken missing from c are ignored.
func (c *Cart) Deduct(taken *Cart) {
	c.Lines = Normalize(c.Lines)
	if taken == nil {
		return
	}
	for _, l := range Normalize(taken.Lines) {
		key := l.Key()
		if current, ok := c.Line(key); ok {
			c.SetQuantity(key, current.Quantity-l.Quantity)
		}
	}
}
