package state

// Subscribe returns a channel of changes and a cancel function. Delivery
// never blocks the mutation path: a full buffer drops the change.
func (c *Container) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subMu.Unlock()

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			close(sub)
			delete(c.subs, id)
		}
	}
	return ch, cancel
}

func (c *Container) publish(ch Change) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, sub := range c.subs {
		select {
		case sub <- ch:
		default:
			c.log.Debug("subscriber lagging, change dropped", "subscriber", id, "kind", ch.Kind)
		}
	}
}
