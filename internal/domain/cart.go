package domain

import "time"

// Cart holds the lines of one owner, or of an anonymous guest when OwnerID is empty.
// A Cart is not safe for concurrent mutation.
type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID   string     `bson:"owner_id" json:"ownerId"`
	Lines     []CartLine `bson:"lines" json:"lines"`
	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
}

func NewCart(ownerID string) *Cart {
	return &Cart{OwnerID: ownerID, Lines: []CartLine{}}
}

// AddLine increases the quantity of an existing line or appends a new one.
// It returns the final quantity of the line.
func (c *Cart) AddLine(productID, size string, quantity int) (int, error) {
	if err := ValidateLine(productID, quantity); err != nil {
		return 0, err
	}
	key := NewLineKey(productID, size)
	if i := c.indexOf(key); i >= 0 {
		c.Lines[i].Quantity += quantity
		return c.Lines[i].Quantity, nil
	}
	c.Lines = append(c.Lines, CartLine{
		ProductID: key.ProductID,
		Size:      key.Size,
		Quantity:  quantity,
	})
	return quantity, nil
}

// SetQuantity overwrites an existing line. A quantity <= 0 removes the line.
// It never creates a line.
func (c *Cart) SetQuantity(key LineKey, quantity int) {
	if quantity <= 0 {
		c.RemoveLine(key)
		return
	}
	if i := c.indexOf(key); i >= 0 {
		c.Lines[i].Quantity = quantity
	}
}

func (c *Cart) RemoveLine(key LineKey) {
	if i := c.indexOf(key); i >= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

func (c *Cart) TotalItemCount() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

func (c *Cart) Clear() {
	c.Lines = []CartLine{}
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

// Line returns the line with the given key.
func (c *Cart) Line(key LineKey) (CartLine, bool) {
	if i := c.indexOf(key); i >= 0 {
		return c.Lines[i], true
	}
	return CartLine{}, false
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Lines = make([]CartLine, len(c.Lines))
	copy(out.Lines, c.Lines)
	return &out
}

func (c *Cart) indexOf(key LineKey) int {
	for i := range c.Lines {
		if c.Lines[i].Key() == key {
			return i
		}
	}
	return -1
}
