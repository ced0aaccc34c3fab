package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"facility-reports/internal/report"
)

const publishTimeout = 5 * time.Second

var errPublishTimeout = errors.New("timed out waiting for broker")

type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	enabled     bool
	logger      zerolog.Logger
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
	Logger      zerolog.Logger
}

// ReportEvent is the archival record published once a report is compiled.
type ReportEvent struct {
	ID          string             `json:"id"`
	ClientID    string             `json:"client_id"`
	Name        string             `json:"name"`
	Period      report.Period      `json:"period"`
	Granularity report.Granularity `json:"granularity"`
	SystemIDs   []string           `json:"system_ids"`
	PointIDs    []string           `json:"monitoring_point_ids"`
	TemplateID  string             `json:"template_id,omitempty"`
	Summary     report.Summary     `json:"summary"`
	Sections    int                `json:"sections"`
	Warnings    int                `json:"warnings"`
	GeneratedAt time.Time          `json:"generated_at"`
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if !cfg.Enabled {
		return &Publisher{enabled: false, logger: cfg.Logger}, nil
	}

	logger := cfg.Logger
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			logger.Warn().Err(err).Msg("MQTT connection lost")
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Info().Str("broker", cfg.Broker).Msg("MQTT connected")
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newPublisher(client, cfg.TopicPrefix, logger), nil
}

func newPublisher(client mqtt.Client, topicPrefix string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		enabled:     true,
		logger:      logger,
	}
}

// Topic returns the topic report events of a client are published on.
func (p *Publisher) Topic(clientID string) string {
	return fmt.Sprintf("%s/reports/%s/generated", p.topicPrefix, clientID)
}

// PublishReportGenerated sends ev with QoS 0, not retained. A disabled
// publisher drops the event silently.
func (p *Publisher) PublishReportGenerated(ev ReportEvent) error {
	if !p.enabled {
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal report event: %w", err)
	}

	topic := p.Topic(ev.ClientID)
	token := p.client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("failed to publish to %s: %w", topic, errPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.Debug().Str("topic", topic).Str("report_id", ev.ID).Msg("report event published")
	return nil
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}
