package tasks

import (
	"context"

	"github.com/postwire/postwire/app/ingest"
)

// PollFeedsTask runs the feed poller over every active subscription.
type PollFeedsTask struct {
	poller *ingest.FeedPoller
}

func NewPollFeedsTask(poller *ingest.FeedPoller) *PollFeedsTask {
	return &PollFeedsTask{poller: poller}
}

func (t *PollFeedsTask) Name() string {
	return "poll_feeds"
}

func (t *PollFeedsTask) Run(ctx context.Context) error {
	t.poller.PollAll(ctx)
	return nil
}
