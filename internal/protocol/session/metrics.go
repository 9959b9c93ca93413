package session

// Metrics receives per-message counters. Implementations must be cheap;
// they run inline on every message.
type Metrics interface {
	MessageSent(iface, message string, size, fds int)
	MessageReceived(iface, message string, size, fds int)
	ProtocolError(kind string)
}

type noopMetrics struct{}

func (noopMetrics) MessageSent(string, string, int, int)     {}
func (noopMetrics) MessageReceived(string, string, int, int) {}
func (noopMetrics) ProtocolError(string)                     {}
