package mqtt

import (
	"io"
	"net/url"
	"sync"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes/wrappers"
)

// Topic suffixes under the line ID. Outbound is what the board transmits.
const (
	OutboundTopic = "tx"
	InboundTopic  = "rx"
)

// DefaultLineID identifies the line when the URL does not. It is derived
// from the machine ID and falls back to "bsp".
func DefaultLineID() string {
	id, err := machineid.ID()
	if err != nil || id == "" {
		return "bsp"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// Encode wraps wire bytes in the message envelope.
func Encode(p []byte) ([]byte, error) {
	return proto.Marshal(&wrappers.BytesValue{Value: p})
}

// Decode extracts wire bytes from a message.
func Decode(payload []byte) ([]byte, error) {
	var msg wrappers.BytesValue
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	return msg.Value, nil
}

// Line is one end of the serial line over MQTT. It publishes on PubTopic
// and reads messages from SubTopic.
type Line struct {
	PubSub   *PubSub
	PubTopic string
	SubTopic string

	sub       *Subscription
	packetCh  chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

// Topics returns the board side topics of line id: it publishes on
// id/tx and subscribes to id/rx.
func Topics(id string) (pub, sub string) {
	return id + "/" + OutboundTopic, id + "/" + InboundTopic
}

// Dial connects to the broker at rawURL and opens the board end of the
// line. The query parameter id names the line.
func Dial(rawURL string) (*Line, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	id := u.Query().Get("id")
	if id == "" {
		id = DefaultLineID()
	}
	opts, prefix, err := ClientOptionsFromURL(rawURL)
	if err != nil {
		return nil, err
	}
	ps := NewPubSub(opts, prefix)
	if err := ps.Connect(); err != nil {
		return nil, err
	}
	pub, sub := Topics(id)
	l := NewLine(ps, pub, sub)
	if err := l.Start(); err != nil {
		ps.Close()
		return nil, err
	}
	return l, nil
}

// NewLine creates a Line on a connected PubSub.
func NewLine(ps *PubSub, pub, sub string) *Line {
	return &Line{
		PubSub:   ps,
		PubTopic: pub,
		SubTopic: sub,
		packetCh: make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

// Start subscribes to SubTopic.
func (l *Line) Start() (err error) {
	l.sub, err = l.PubSub.Sub(l.SubTopic, l.handleMsg)
	return
}

// ReadPacket returns the bytes of the next message.
func (l *Line) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-l.packetCh:
		return pkt, nil
	case <-l.closed:
		return nil, io.EOF
	}
}

// WritePacket publishes pkt as one message.
func (l *Line) WritePacket(pkt []byte) error {
	payload, err := Encode(pkt)
	if err != nil {
		return err
	}
	return l.PubSub.Pub(l.PubTopic, payload)
}

// Close unsubscribes and disconnects.
func (l *Line) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closed)
		if l.sub != nil {
			err = l.sub.Close()
		}
		l.PubSub.Close()
	})
	return err
}

func (l *Line) handleMsg(_ string, payload []byte) {
	pkt, err := Decode(payload)
	if err != nil {
		glog.Warningf("mqtt: bad message on %q: %v", l.SubTopic, err)
		return
	}
	select {
	case l.packetCh <- pkt:
	case <-l.closed:
	}
}
