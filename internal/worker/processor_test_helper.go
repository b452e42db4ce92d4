package worker

import (
	"context"

	"github.com/checkfox/go_reachout/internal/queue"
)

// ProcessJobForTest exposes job handling to integration tests
func (p *Processor) ProcessJobForTest(ctx context.Context, job *queue.Job) error {
	return p.processJob(ctx, job)
}

// PollOnceForTest runs a single poll iteration and reports whether a job was handled
func (p *Processor) PollOnceForTest(ctx context.Context) (bool, error) {
	return p.pollAndProcess(ctx)
}
