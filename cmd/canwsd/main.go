// Command canwsd bridges the soft CAN node to websocket clients. Received
// frames are streamed as JSON; JSON messages from clients are transmitted
// onto the bus.
package main

import (
	"flag"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lufla/softcan"
	"github.com/lufla/softcan/internal/nodecfg"
)

// wireFrame is the JSON shape exchanged with clients.
type wireFrame struct {
	ID   uint32 `json:"id"`
	DLC  uint8  `json:"dlc"`
	Data []byte `json:"data"`
}

func toWire(f softcan.Frame) wireFrame {
	n := f.EffectiveDLC()
	return wireFrame{ID: f.ID, DLC: n, Data: append([]byte(nil), f.Data[:n]...)}
}

func (w wireFrame) frame() (softcan.Frame, error) {
	var f softcan.Frame
	f.ID = w.ID
	f.DLC = w.DLC
	if len(w.Data) > len(f.Data) {
		return f, softcan.ErrInvalidLen
	}
	copy(f.Data[:], w.Data)
	return f, f.Validate()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The bridge is meant for local dashboards; no origin policy.
	CheckOrigin: func(*http.Request) bool { return true },
}

func main() {
	configPath := flag.String("config", "/etc/softcan/config.yaml", "Path to config file")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)

	cfg, err := nodecfg.Load(*configPath)
	if err != nil {
		log.Fatalf("[canwsd] %v", err)
	}

	hio, err := softcan.NewSysfsHostIO(cfg.Node.RXPin, cfg.Node.TXPin)
	if err != nil {
		log.Fatalf("[canwsd] gpio: %v", err)
	}
	if c, ok := hio.(io.Closer); ok {
		defer c.Close()
	}

	node := softcan.New(hio, cfg.Node.RXPin, cfg.Node.TXPin)
	if err := node.Begin(cfg.Node.Bitrate); err != nil {
		log.Fatalf("[canwsd] begin: %v", err)
	}

	pump := softcan.NewPump(node, time.Duration(cfg.PollIntervalUs())*time.Microsecond, nil)
	defer pump.Close()

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(pump, w, r)
	})

	log.Printf("[canwsd] listening on %s (bus %d bit/s)", cfg.Server.ListenAddr, cfg.Node.Bitrate)
	if err := http.ListenAndServe(cfg.Server.ListenAddr, nil); err != nil {
		log.Fatalf("[canwsd] serve: %v", err)
	}
}

func serveWS(pump *softcan.Pump, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[canwsd] upgrade: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("[canwsd] client %s connected", conn.RemoteAddr())

	frames, cancel := pump.Subscribe(nil, 64)
	defer cancel()

	done := make(chan struct{})

	// Writer: bus -> client.
	go func() {
		defer close(done)
		for f := range frames {
			if err := conn.WriteJSON(toWire(f)); err != nil {
				return
			}
		}
	}()

	// Reader: client -> bus.
	for {
		var wf wireFrame
		if err := conn.ReadJSON(&wf); err != nil {
			break
		}
		f, err := wf.frame()
		if err != nil {
			log.Printf("[canwsd] bad frame from %s: %v", conn.RemoteAddr(), err)
			continue
		}
		if err := pump.Send(f); err != nil {
			log.Printf("[canwsd] send %s: %v", f.String(), err)
		}
	}
	conn.Close()
	<-done
	log.Printf("[canwsd] client %s disconnected", conn.RemoteAddr())
}
