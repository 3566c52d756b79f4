package collab

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// websocket transport. Framed protocol bytes ride inside binary
// websocket messages, so sessions can peer through proxies and browsers
// that cannot speak raw tcp.

type WsConn struct {
	ws *websocket.Conn
	// current partial message being consumed
	reader io.Reader
}

func NewWsConn(ws *websocket.Conn) *WsConn {
	return &WsConn{
		ws: ws,
	}
}

func (self *WsConn) Read(b []byte) (int, error) {
	for {
		if self.reader == nil {
			messageType, reader, err := self.ws.NextReader()
			if err != nil {
				return 0, err
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			self.reader = reader
		}
		n, err := self.reader.Read(b)
		if err == io.EOF {
			self.reader = nil
			if n == 0 {
				continue
			}
			return n, nil
		}
		return n, err
	}
}

func (self *WsConn) Write(b []byte) (int, error) {
	if err := self.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (self *WsConn) Close() error {
	self.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(1*time.Second),
	)
	return self.ws.Close()
}

func DialWs(ctx context.Context, url string) (*WsConn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewWsConn(ws), nil
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// sessions are joined by ticket, not by origin
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WsHandler upgrades http requests into session streams. Mount it on any
// mux and advertise the ws:// url in the session ticket.
func (self *Session) WsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			glog.V(1).Infof("[session]ws upgrade failed: %s\n", err)
			return
		}
		go self.HandleStream(NewWsConn(ws))
	})
}
