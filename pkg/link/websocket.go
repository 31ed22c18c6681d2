package link

import (
	"golang.org/x/net/websocket"
)

// WebsocketConn carries wire bytes as binary websocket messages.
type WebsocketConn websocket.Conn

// NewWebsocketConn wraps conn.
func NewWebsocketConn(conn *websocket.Conn) *WebsocketConn {
	return (*WebsocketConn)(conn)
}

// ReadPacket implements PacketReadWriter.
func (c *WebsocketConn) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(c), &pkt)
	return
}

// WritePacket implements PacketReadWriter.
func (c *WebsocketConn) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(c), pkt)
}

// Close implements io.Closer.
func (c *WebsocketConn) Close() error {
	return (*websocket.Conn)(c).Close()
}

// DialWebsocket connects to a websocket server.
func DialWebsocket(rawURL string) (*PacketStream, error) {
	conn, err := websocket.Dial(rawURL, "", "http://localhost/")
	if err != nil {
		return nil, err
	}
	return NewPacketStream(NewWebsocketConn(conn)), nil
}
