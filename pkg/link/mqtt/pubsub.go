// Package mqtt carries the serial line over an MQTT broker. Each chunk of
// wire bytes is one message, wrapped in a protobuf BytesValue.
package mqtt

import (
	"net/url"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Handler is called for each message on a subscribed topic. The topic is
// relative to the client prefix.
type Handler func(topic string, payload []byte)

// PubSub wraps a paho client with a topic prefix and local fan-out of
// subscriptions.
type PubSub struct {
	Client      paho.Client
	TopicPrefix string

	lock sync.RWMutex
	subs map[string][]*Subscription
}

// Subscription is a handler registered on a topic filter.
type Subscription struct {
	ps      *PubSub
	filter  string
	handler Handler
}

// MatchTopic reports whether topic matches filter, which may contain the
// '+' and trailing '#' wildcards.
func MatchTopic(topic, filter string) bool {
	ts, fs := strings.Split(topic, "/"), strings.Split(filter, "/")
	for i, f := range fs {
		if f == "#" && i == len(fs)-1 {
			return true
		}
		if i >= len(ts) {
			return false
		}
		if f != "+" && f != ts[i] {
			return false
		}
	}
	return len(ts) == len(fs)
}

// ClientOptionsFromURL converts mqtt://[user[:pwd]@]host[:port]/prefix/
// into paho options and the topic prefix. The query may set client-id.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	scheme := u.Scheme
	if scheme == "" || scheme == "mqtt" {
		scheme = "tcp"
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(scheme + "://" + u.Host).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, strings.TrimPrefix(u.Path, "/"), nil
}

// NewPubSub creates a PubSub. The client is not connected.
func NewPubSub(options *paho.ClientOptions, topicPrefix string) *PubSub {
	ps := &PubSub{TopicPrefix: topicPrefix, subs: make(map[string][]*Subscription)}
	options.SetOnConnectHandler(ps.onConnect)
	options.SetConnectionLostHandler(func(_ paho.Client, err error) {
		glog.Warningf("mqtt connection lost: %v", err)
	})
	ps.Client = paho.NewClient(options)
	return ps
}

// Connect connects the client and waits for the result.
func (ps *PubSub) Connect() error {
	token := ps.Client.Connect()
	token.Wait()
	return token.Error()
}

// Close implements io.Closer.
func (ps *PubSub) Close() error {
	ps.Client.Disconnect(0)
	return nil
}

// Sub registers handler on filter. The broker subscription is made for the
// first handler of a filter only.
func (ps *PubSub) Sub(filter string, handler Handler) (*Subscription, error) {
	sub := &Subscription{ps: ps, filter: filter, handler: handler}
	ps.lock.Lock()
	first := len(ps.subs[filter]) == 0
	ps.subs[filter] = append(ps.subs[filter], sub)
	ps.lock.Unlock()

	if first {
		glog.V(2).Infof("SUB %q", ps.TopicPrefix+filter)
		token := ps.Client.Subscribe(ps.TopicPrefix+filter, 0, ps.dispatch)
		token.Wait()
		if err := token.Error(); err != nil {
			sub.remove()
			return nil, err
		}
	}
	return sub, nil
}

// Pub publishes payload on topic and waits for completion.
func (ps *PubSub) Pub(topic string, payload []byte) error {
	glog.V(2).Infof("PUB %q %d bytes", ps.TopicPrefix+topic, len(payload))
	token := ps.Client.Publish(ps.TopicPrefix+topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

func (ps *PubSub) filters() map[string]byte {
	ps.lock.RLock()
	defer ps.lock.RUnlock()
	filters := make(map[string]byte, len(ps.subs))
	for filter := range ps.subs {
		filters[ps.TopicPrefix+filter] = 0
	}
	return filters
}

// onConnect restores the subscriptions after a reconnect.
func (ps *PubSub) onConnect(paho.Client) {
	glog.Info("mqtt connected")
	if filters := ps.filters(); len(filters) > 0 {
		ps.Client.SubscribeMultiple(filters, ps.dispatch)
	}
}

func (ps *PubSub) dispatch(_ paho.Client, msg paho.Message) {
	ps.deliver(msg.Topic(), msg.Payload())
}

func (ps *PubSub) deliver(topic string, payload []byte) {
	if !strings.HasPrefix(topic, ps.TopicPrefix) {
		return
	}
	topic = topic[len(ps.TopicPrefix):]
	glog.V(2).Infof("RCV %q", topic)
	var handlers []Handler
	ps.lock.RLock()
	for filter, subs := range ps.subs {
		if MatchTopic(topic, filter) {
			for _, sub := range subs {
				handlers = append(handlers, sub.handler)
			}
		}
	}
	ps.lock.RUnlock()
	for _, h := range handlers {
		h(topic, payload)
	}
}

// remove drops the subscription locally and reports whether it was the
// last one on its filter.
func (s *Subscription) remove() bool {
	s.ps.lock.Lock()
	defer s.ps.lock.Unlock()
	subs := s.ps.subs[s.filter]
	for i, sub := range subs {
		if sub == s {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(s.ps.subs, s.filter)
		return true
	}
	s.ps.subs[s.filter] = subs
	return false
}

// Close unregisters the handler, unsubscribing from the broker with the
// last handler of the filter.
func (s *Subscription) Close() error {
	if !s.remove() {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", s.ps.TopicPrefix+s.filter)
	token := s.ps.Client.Unsubscribe(s.ps.TopicPrefix + s.filter)
	token.Wait()
	return token.Error()
}
