package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/bsp.go/pkg/link/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/bsp/"
)

func init() {
	if val := os.Getenv("BSP_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	opts, prefix, err := mqtt.ClientOptionsFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	ps := mqtt.NewPubSub(opts, prefix)
	if err := ps.Connect(); err != nil {
		log.Fatalln(err)
	}
	defer ps.Close()

	show := func(topic string, payload []byte) {
		data, err := mqtt.Decode(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		dir := "<-"
		if strings.HasSuffix(topic, "/"+mqtt.InboundTopic) {
			dir = "->"
		}
		log.Printf("%s %s %q", strings.SplitN(topic, "/", 2)[0], dir, data)
	}
	for _, filter := range []string{"+/" + mqtt.OutboundTopic, "+/" + mqtt.InboundTopic} {
		if _, err := ps.Sub(filter, show); err != nil {
			log.Fatalln(err)
		}
	}
	<-(chan struct{})(nil)
}
