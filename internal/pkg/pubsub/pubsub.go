package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
)

// Publishable is a domain event that knows which topic it belongs to.
type Publishable interface {
	GetEventTopicName() string
}

type Publisher interface {
	Publish(ctx context.Context, message Publishable)
}

// Client publishes domain events to GCP Pub/Sub. Publishing is asynchronous and failures
// are logged, never returned to the caller.
type Client struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewClient(ctx context.Context, projectId string) (*Client, error) {
	client, err := pubsub.NewClient(ctx, projectId)
	if err != nil {
		return nil, err
	}
	log.Info().Str("projectId", projectId).Msg("Successful pubsub init")
	return &Client{
		client: client,
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

func (c *Client) Publish(ctx context.Context, message Publishable) {
	topicName := message.GetEventTopicName()
	t := c.getTopic(topicName)

	result := t.Publish(ctx, &pubsub.Message{Data: encodeMessage(message)})

	go func(res *pubsub.PublishResult) {
		// the request context may be gone by the time the server answers
		if _, err := res.Get(context.Background()); err != nil {
			log.Warn().Err(err).Str("topic", topicName).Msg("Failed to publish message")
		}
	}(result)
}

func (c *Client) getTopic(topicName string) *pubsub.Topic {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.topics[topicName]; ok {
		return t
	}
	t := c.client.Topic(topicName)
	c.topics[topicName] = t
	return t
}

// Close flushes pending messages and releases the client.
func (c *Client) Close() error {
	c.mu.Lock()
	for _, t := range c.topics {
		t.Stop()
	}
	c.mu.Unlock()
	return c.client.Close()
}

func encodeMessage(message any) []byte {
	switch m := message.(type) {
	case string:
		return []byte(m)
	default:
		bytes, _ := json.Marshal(message)
		return bytes
	}
}

// NopPublisher drops every event, used when no project is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Publishable) {}
