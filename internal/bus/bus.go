// Package bus fans out validator notifications and resolution results
// over an in-process pub/sub server. Delivery is best-effort; the
// orchestrator's state machine never depends on it.
package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/cometbft/cometbft/libs/pubsub"
	"github.com/cometbft/cometbft/libs/pubsub/query"
	"github.com/rs/xid"
)

// Well-known topics.
const (
	TopicValidationAvailable = "validation.available"
	TopicValidationResult    = "validation.result"
)

// Event attributes subscriptions can filter on.
const (
	attrTopic  = "topic"
	attrRegion = "region"
	attrPlayer = "player"
)

// ValidationAvailable tells selected validators a request is open for
// votes. It carries the content reference, never the payload itself.
type ValidationAvailable struct {
	RequestID          string   `json:"requestId"`
	EventType          string   `json:"eventType"`
	EventDataRef       string   `json:"eventDataRef"`
	SubmitterID        string   `json:"submitterId"`
	RegionID           string   `json:"regionId,omitempty"`
	RequiredValidators int      `json:"requiredValidators"`
	Validators         []string `json:"validators"`
}

// ValidationResult is the point-to-point resolution notice pushed back to
// the submitter.
type ValidationResult struct {
	RequestID     string `json:"requestId"`
	SubmitterID   string `json:"submitterId"`
	Outcome       string `json:"outcome"`
	AgreeCount    int    `json:"agreeCount"`
	DisagreeCount int    `json:"disagreeCount"`
	Warnings      string `json:"warnings,omitempty"`
}

type Bus struct {
	server *pubsub.Server
}

// New builds the bus with a buffered publish queue.
func New(bufferCapacity int) *Bus {
	return &Bus{server: pubsub.NewServer(pubsub.BufferCapacity(bufferCapacity))}
}

func (b *Bus) Start() error { return b.server.Start() }
func (b *Bus) Stop() error  { return b.server.Stop() }

// PublishValidationAvailable broadcasts an open request. Subscribers can
// filter by region or by their own player id.
func (b *Bus) PublishValidationAvailable(ctx context.Context, msg ValidationAvailable) error {
	events := map[string][]string{
		attrTopic: {TopicValidationAvailable},
	}
	if msg.RegionID != "" {
		events[attrRegion] = []string{msg.RegionID}
	}
	if len(msg.Validators) > 0 {
		events[attrPlayer] = msg.Validators
	}
	return b.server.PublishWithEvents(ctx, msg, events)
}

// PublishValidationResult delivers a resolution to its submitter's
// subscription.
func (b *Bus) PublishValidationResult(ctx context.Context, msg ValidationResult) error {
	events := map[string][]string{
		attrTopic:  {TopicValidationResult},
		attrPlayer: {msg.SubmitterID},
	}
	return b.server.PublishWithEvents(ctx, msg, events)
}

// SubscribePlayer delivers every message addressed to playerID on topic.
// The returned subscriber id cancels the subscription via Unsubscribe.
func (b *Bus) SubscribePlayer(ctx context.Context, topic, playerID string) (*pubsub.Subscription, string, error) {
	q, err := compile(fmt.Sprintf("%s = '%s' AND %s = '%s'",
		attrTopic, escape(topic), attrPlayer, escape(playerID)))
	if err != nil {
		return nil, "", err
	}
	subscriber := xid.New().String()
	sub, err := b.server.Subscribe(ctx, subscriber, q, 16)
	if err != nil {
		return nil, "", err
	}
	return sub, subscriber, nil
}

// SubscribeRegion delivers "validation available" broadcasts for one
// spatial region.
func (b *Bus) SubscribeRegion(ctx context.Context, regionID string) (*pubsub.Subscription, string, error) {
	q, err := compile(fmt.Sprintf("%s = '%s' AND %s = '%s'",
		attrTopic, TopicValidationAvailable, attrRegion, escape(regionID)))
	if err != nil {
		return nil, "", err
	}
	subscriber := xid.New().String()
	sub, err := b.server.Subscribe(ctx, subscriber, q, 16)
	if err != nil {
		return nil, "", err
	}
	return sub, subscriber, nil
}

// Unsubscribe drops every subscription held by subscriber.
func (b *Bus) Unsubscribe(ctx context.Context, subscriber string) error {
	return b.server.UnsubscribeAll(ctx, subscriber)
}

func compile(s string) (*query.Query, error) {
	return query.New(s)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "'", "")
}
