package match

import "github.com/park285/Cheese-LiveBoard/pkg/boarddto"

// Notifier delivers events to connections. Both calls happen inside the session's
// critical section and must not block.
type Notifier interface {
	Send(connID string, env boarddto.Envelope)
	Broadcast(env boarddto.Envelope)
}

// Broadcaster receives every broadcast event in session order.
type Broadcaster interface {
	Broadcast(env boarddto.Envelope)
}

// Fanout sends to primary and mirrors its broadcasts to extra.
func Fanout(primary Notifier, extra ...Broadcaster) Notifier {
	out := fanout{primary: primary}
	for _, b := range extra {
		if b != nil {
			out.extra = append(out.extra, b)
		}
	}
	return out
}

type fanout struct {
	primary Notifier
	extra   []Broadcaster
}

func (f fanout) Send(connID string, env boarddto.Envelope) {
	if f.primary != nil {
		f.primary.Send(connID, env)
	}
}

func (f fanout) Broadcast(env boarddto.Envelope) {
	if f.primary != nil {
		f.primary.Broadcast(env)
	}
	for _, b := range f.extra {
		b.Broadcast(env)
	}
}

type nopNotifier struct{}

func (nopNotifier) Send(string, boarddto.Envelope) {}
func (nopNotifier) Broadcast(boarddto.Envelope)    {}
