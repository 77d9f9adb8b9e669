// Command canmqttd bridges the soft CAN node to an MQTT broker. Received
// frames are published to <prefix>/rx in the SocketCAN binary layout;
// payloads arriving on <prefix>/tx are transmitted onto the bus.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/lufla/softcan"
	"github.com/lufla/softcan/internal/nodecfg"
)

func main() {
	configPath := flag.String("config", "/etc/softcan/config.yaml", "Path to config file")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime)

	cfg, err := nodecfg.Load(*configPath)
	if err != nil {
		log.Fatalf("[canmqttd] %v", err)
	}

	hio, err := softcan.NewSysfsHostIO(cfg.Node.RXPin, cfg.Node.TXPin)
	if err != nil {
		log.Fatalf("[canmqttd] gpio: %v", err)
	}
	if c, ok := hio.(io.Closer); ok {
		defer c.Close()
	}

	node := softcan.New(hio, cfg.Node.RXPin, cfg.Node.TXPin)
	if err := node.Begin(cfg.Node.Bitrate); err != nil {
		log.Fatalf("[canmqttd] begin: %v", err)
	}

	pump := softcan.NewPump(node, time.Duration(cfg.PollIntervalUs())*time.Microsecond, nil)
	defer pump.Close()

	opts := paho.NewClientOptions().
		AddBroker(cfg.MQTT.BrokerURL).
		SetClientID(cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetCleanSession(true)

	txTopic := cfg.MQTT.TopicPrefix + "/tx"
	rxTopic := cfg.MQTT.TopicPrefix + "/rx"

	opts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(txTopic, 0, func(_ paho.Client, msg paho.Message) {
			var f softcan.Frame
			if err := f.UnmarshalBinary(msg.Payload()); err != nil {
				log.Printf("[canmqttd] bad payload on %s: %v", msg.Topic(), err)
				return
			}
			if err := pump.Send(f); err != nil {
				log.Printf("[canmqttd] send %s: %v", f.String(), err)
			}
		})
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("[canmqttd] subscribe %s: %v", txTopic, err)
			return
		}
		log.Printf("[canmqttd] connected, subscribed to %s", txTopic)
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("[canmqttd] connect %s: %v", cfg.MQTT.BrokerURL, token.Error())
	}
	defer client.Disconnect(250)

	frames, cancel := pump.Subscribe(nil, 64)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("[canmqttd] bridging bus (%d bit/s) to %s", cfg.Node.Bitrate, cfg.MQTT.BrokerURL)
	for {
		select {
		case sig := <-sigCh:
			log.Printf("[canmqttd] received %v, shutting down", sig)
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			payload, err := f.MarshalBinary()
			if err != nil {
				continue
			}
			client.Publish(rxTopic, 0, false, payload)
		}
	}
}
