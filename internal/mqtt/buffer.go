package mqtt

// pendingMsg is a serialized publish held back while the broker is away.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox keeps the most recent publishes made while disconnected, up to a
// fixed limit, so they can be replayed in order on reconnect.
// Not safe for concurrent use; RealPublisher guards it with its mutex.
type outbox struct {
	msgs    []pendingMsg
	limit   int
	dropped int // messages discarded since the last flush
}

func newOutbox(limit int) *outbox {
	if limit < 1 {
		limit = 1
	}
	return &outbox{msgs: make([]pendingMsg, 0, limit), limit: limit}
}

// add queues msg, discarding the oldest queued message when at the limit.
// It reports true for the first discard after a flush so callers can log once.
func (o *outbox) add(msg pendingMsg) bool {
	if len(o.msgs) < o.limit {
		o.msgs = append(o.msgs, msg)
		return false
	}
	copy(o.msgs, o.msgs[1:])
	o.msgs[len(o.msgs)-1] = msg
	o.dropped++
	return o.dropped == 1
}

// flush returns the queued messages oldest first with the number discarded,
// and empties the outbox.
func (o *outbox) flush() ([]pendingMsg, int) {
	if len(o.msgs) == 0 {
		dropped := o.dropped
		o.dropped = 0
		return nil, dropped
	}
	out := make([]pendingMsg, len(o.msgs))
	copy(out, o.msgs)
	dropped := o.dropped
	o.msgs = o.msgs[:0]
	o.dropped = 0
	return out, dropped
}

func (o *outbox) size() int {
	return len(o.msgs)
}
