// Command candump prints every frame received by the soft CAN node, one
// per line, in human-readable or SLCAN form.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lufla/softcan"
	"github.com/lufla/softcan/internal/nodecfg"
	"github.com/lufla/softcan/slcan"
)

func main() {
	configPath := flag.String("config", "/etc/softcan/config.yaml", "Path to config file")
	asSLCAN := flag.Bool("slcan", false, "Print frames as SLCAN lines")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)

	cfg, err := nodecfg.Load(*configPath)
	if err != nil {
		log.Fatalf("[candump] %v", err)
	}

	hio, err := softcan.NewSysfsHostIO(cfg.Node.RXPin, cfg.Node.TXPin)
	if err != nil {
		log.Fatalf("[candump] gpio: %v", err)
	}
	if c, ok := hio.(io.Closer); ok {
		defer c.Close()
	}

	node := softcan.New(hio, cfg.Node.RXPin, cfg.Node.TXPin)
	if err := node.Begin(cfg.Node.Bitrate); err != nil {
		log.Fatalf("[candump] begin: %v", err)
	}
	log.Printf("[candump] listening at %d bit/s on rx=%d tx=%d",
		cfg.Node.Bitrate, cfg.Node.RXPin, cfg.Node.TXPin)

	pump := softcan.NewPump(node, time.Duration(cfg.PollIntervalUs())*time.Microsecond, nil)
	defer pump.Close()

	frames, cancel := pump.Subscribe(nil, 64)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case sig := <-sigCh:
			log.Printf("[candump] received %v, shutting down", sig)
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if *asSLCAN {
				fmt.Println(slcan.Encode(f))
			} else {
				fmt.Println(f.String())
			}
		}
	}
}
