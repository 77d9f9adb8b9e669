// Command cansend transmits a single frame given as an SLCAN literal,
// e.g. "cansend t1234DEADBEEF", and reports the result.
package main

import (
	"errors"
	"flag"
	"io"
	"log"

	"github.com/lufla/softcan"
	"github.com/lufla/softcan/internal/nodecfg"
	"github.com/lufla/softcan/slcan"
)

func main() {
	configPath := flag.String("config", "/etc/softcan/config.yaml", "Path to config file")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)

	if flag.NArg() != 1 {
		log.Fatalf("[cansend] usage: cansend [-config file] tIIIDL..")
	}
	frame, err := slcan.Decode(flag.Arg(0))
	if err != nil {
		log.Fatalf("[cansend] %v", err)
	}

	cfg, err := nodecfg.Load(*configPath)
	if err != nil {
		log.Fatalf("[cansend] %v", err)
	}

	hio, err := softcan.NewSysfsHostIO(cfg.Node.RXPin, cfg.Node.TXPin)
	if err != nil {
		log.Fatalf("[cansend] gpio: %v", err)
	}
	if c, ok := hio.(io.Closer); ok {
		defer c.Close()
	}

	node := softcan.New(hio, cfg.Node.RXPin, cfg.Node.TXPin)
	if err := node.Begin(cfg.Node.Bitrate); err != nil {
		log.Fatalf("[cansend] begin: %v", err)
	}

	err = node.Send(frame)
	switch {
	case err == nil:
		log.Printf("[cansend] sent %s (acked, tec=%d)", frame.String(), node.TEC())
	case errors.Is(err, softcan.ErrNoAck):
		log.Fatalf("[cansend] no ack for %s (tec=%d state=%s)",
			frame.String(), node.TEC(), node.State())
	default:
		log.Fatalf("[cansend] %v (tec=%d state=%s)", err, node.TEC(), node.State())
	}
}
