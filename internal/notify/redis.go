// Package notify publishes run events to Redis so dashboards or follow-up
// tooling can react to applications as they happen. Publishing is entirely
// optional and never fails a run.
package notify

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/Prakashmaheshwaran/handshook/internal/engine"
	"github.com/Prakashmaheshwaran/handshook/internal/model"
	"github.com/Prakashmaheshwaran/handshook/pkg/logging"
)

// Event channels.
const (
	ChannelSubmitted = "EVENT_APPLICATION_SUBMITTED"
	ChannelRejected  = "EVENT_APPLICATION_REJECTED"
	ChannelCompleted = "EVENT_RUN_COMPLETED"
)

// Publisher pushes run events to Redis channels.
type Publisher struct {
	rdb *redis.Client
	log *logging.Logger
}

var _ engine.Events = (*Publisher)(nil)

// New parses redisURL and verifies connectivity.
func New(ctx context.Context, redisURL string, log *logging.Logger) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrapf(err, "redis.ParseURL(%q)", redisURL)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "redis ping failed")
	}

	return &Publisher{rdb: rdb, log: log}, nil
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// ApplicationSubmitted announces a successful application. Non-fatal.
func (p *Publisher) ApplicationSubmitted(ctx context.Context, job model.JobRecord) {
	p.publish(ctx, ChannelSubmitted, map[string]string{
		"type":     ChannelSubmitted,
		"jobId":    job.JobID,
		"title":    job.Title,
		"employer": job.Employer,
	})
}

// ApplicationRejected announces a definitive platform rejection. Non-fatal.
func (p *Publisher) ApplicationRejected(ctx context.Context, job model.JobRecord) {
	p.publish(ctx, ChannelRejected, map[string]string{
		"type":     ChannelRejected,
		"jobId":    job.JobID,
		"title":    job.Title,
		"employer": job.Employer,
	})
}

// RunCompleted announces the run summary. Non-fatal.
func (p *Publisher) RunCompleted(ctx context.Context, sum *engine.Summary) {
	p.publish(ctx, ChannelCompleted, map[string]any{
		"type":              ChannelCompleted,
		"runId":             sum.RunID,
		"checked":           sum.Checked,
		"applied":           sum.Applied,
		"deferred":          sum.Deferred,
		"rejected":          sum.Rejected,
		"transientFailures": sum.TransientFailures,
	})
}

func (p *Publisher) publish(ctx context.Context, channel string, event any) {
	body, err := json.Marshal(event)
	if err != nil {
		p.log.Warn("encode event failed", "channel", channel, "cause", err)
		return
	}
	if err := p.rdb.Publish(ctx, channel, body).Err(); err != nil {
		p.log.Warn("publish event failed", "channel", channel, "cause", err)
	}
}
