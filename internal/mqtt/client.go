// Package mqtt accepts engine commands over MQTT and publishes the
// animation status as a retained message.
//
// Topics, relative to the configured prefix:
//
//	<prefix>/command       JSON commands in
//	<prefix>/status        retained animation status out
//	<prefix>/availability  retained online/offline, with a last will
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dchest/uniuri"
	pm "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/engine"
	"github.com/dokzlo13/huemotion/internal/eventbus"
)

// Source is stamped on animations started over MQTT.
const Source = "mqtt"

const (
	connectTimeout = 10 * time.Second
	submitTimeout  = 5 * time.Second
	keepAlive      = 30 * time.Second
)

// ErrConnectionFailed is returned when the broker can't be reached.
var ErrConnectionFailed = errors.New("mqtt connection failed")

// Submitter enqueues commands. *engine.Engine implements it.
type Submitter interface {
	Submit(ctx context.Context, cmd engine.Command) error
}

// StatusSource reports what the engine is doing. *engine.Engine implements it.
type StatusSource interface {
	Status() engine.Status
}

// Config holds broker settings.
type Config struct {
	Broker         string
	Username       string
	Password       string
	ClientIDPrefix string
	TopicPrefix    string
	QoS            byte
}

// Topics names the topics under a prefix.
type Topics struct {
	Prefix string
}

func (t Topics) Command() string      { return t.Prefix + "/command" }
func (t Topics) Status() string       { return t.Prefix + "/status" }
func (t Topics) Availability() string { return t.Prefix + "/availability" }

// Client bridges MQTT and the engine.
type Client struct {
	client pm.Client
	cfg    Config
	topics Topics
	submit Submitter
	status StatusSource
}

// Connect dials the broker and subscribes to the command topic. The
// subscription is restored on every reconnect.
func Connect(cfg Config, submit Submitter, status StatusSource) (*Client, error) {
	c := &Client{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
		submit: submit,
		status: status,
	}

	clientID := cfg.ClientIDPrefix + "_" + uniuri.New()
	opts := pm.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout).
		SetKeepAlive(keepAlive).
		SetWill(c.topics.Availability(), "offline", cfg.QoS, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ pm.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.client = pm.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	log.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Msg("Connected to MQTT")
	return c, nil
}

func (c *Client) onConnect(client pm.Client) {
	client.Publish(c.topics.Availability(), c.cfg.QoS, true, "online")

	token := client.Subscribe(c.topics.Command(), c.cfg.QoS, c.handleMessage)
	go func() {
		if token.WaitTimeout(connectTimeout) && token.Error() != nil {
			log.Error().Err(token.Error()).Str("topic", c.topics.Command()).Msg("MQTT subscribe failed")
			return
		}
		log.Info().Str("topic", c.topics.Command()).Msg("Subscribed to MQTT commands")
	}()

	c.PublishStatus()
}

func (c *Client) handleMessage(_ pm.Client, msg pm.Message) {
	cmd, err := ParseMessage(msg.Payload())
	if err != nil {
		log.Warn().Err(err).Str("payload", string(msg.Payload())).Msg("Ignoring MQTT message")
		return
	}
	log.Debug().Str("command", cmd.Name()).Msg("MQTT command received")

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	if err := c.submit.Submit(ctx, cmd); err != nil {
		log.Warn().Err(err).Str("command", cmd.Name()).Msg("Failed to submit MQTT command")
	}
}

// Subscribe republishes the status whenever an animation starts or stops.
func (c *Client) Subscribe(bus *eventbus.Bus) {
	bus.SubscribeAll(func(eventbus.Event) { c.PublishStatus() },
		eventbus.EventTypeAnimationStarted,
		eventbus.EventTypeAnimationStopped,
	)
}

// PublishStatus sends the current engine status as a retained message.
func (c *Client) PublishStatus() {
	payload, err := StatusPayload(c.status.Status())
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode MQTT status")
		return
	}
	c.client.Publish(c.topics.Status(), c.cfg.QoS, true, payload)
}

// StatusPayload encodes a status for the status topic.
func StatusPayload(st engine.Status) ([]byte, error) {
	return json.Marshal(st)
}

// Close announces the client offline and disconnects.
func (c *Client) Close() {
	if c.client == nil {
		return
	}
	if c.client.IsConnected() {
		token := c.client.Publish(c.topics.Availability(), c.cfg.QoS, true, "offline")
		token.WaitTimeout(time.Second)
	}
	c.client.Disconnect(250)
	log.Info().Msg("Disconnected from MQTT")
}
