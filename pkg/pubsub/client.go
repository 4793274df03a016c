package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/walletcore/pkg/config"
	"github.com/angelmondragon/walletcore/pkg/logger"
)

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

// Client owns the Pub/Sub connection of a worker. Topics and subscriptions
// are provisioned by infrastructure; the client only checks they exist.
type Client struct {
	client  *pubsub.Client
	project string
	cfg     config.PubSubConfig
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	raw, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}

	c := &Client{client: raw, project: project, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "project", project), "pubsub client initialized")
	}
	return c, nil
}

// Ping checks that every configured topic and subscription exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	for _, topic := range []string{c.cfg.WalletTopic, c.cfg.EscrowTopic} {
		if strings.TrimSpace(topic) == "" {
			continue
		}
		name := c.resource(kindTopic, topic)
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		if err := missing(name, err); err != nil {
			return err
		}
	}
	if strings.TrimSpace(c.cfg.LedgerExportSubscription) == "" {
		return errors.New("pubsub subscription name is required")
	}
	name := c.resource(kindSubscription, c.cfg.LedgerExportSubscription)
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	return missing(name, err)
}

func missing(name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub resource %s does not exist", name)
	}
	return fmt.Errorf("check pubsub resource %s: %w", name, err)
}

// LedgerExportSubscription returns the subscriber feeding the BigQuery export.
func (c *Client) LedgerExportSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Subscriber(c.resource(kindSubscription, c.cfg.LedgerExportSubscription))
}

// Publisher returns a handle for a topic id or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil || strings.TrimSpace(topic) == "" {
		return nil
	}
	return c.client.Publisher(c.resource(kindTopic, topic))
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) resource(kind resourceKind, name string) string {
	return resourceName(c.project, kind, name)
}

// resourceName expands a short id into projects/<p>/<kind>/<id>. Full
// resource names pass through so another project can be referenced.
func resourceName(project string, kind resourceKind, name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+string(kind)+"/") {
		return name
	}
	return fmt.Sprintf("projects/%s/%s/%s", project, kind, name)
}
