package fquic

var (
	EncodeEnvelope = encodeEnvelope
	DecodeEnvelope = decodeEnvelope
)

// Queued reports how many datagrams are waiting for the send loop.
func (c *Channel) Queued() int {
	return len(c.sendQ)
}
