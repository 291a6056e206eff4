// Package registry holds the in-process and cross-instance pieces of the
// form pipeline's task bookkeeping that don't belong in the Postgres
// repositories.
package registry

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/ai-helloworld/internal/domain/formpipeline"
)

const defaultCancelFlagTTL = 24 * time.Hour

var _ formpipeline.CancelSignal = (*CancelFlag)(nil)

// CancelFlag is a Valkey-backed "cancel requested" bit keyed by request id,
// giving the pipeline cross-instance cancellation in horizontally scaled
// deployments: the instance handling the DELETE call sets the flag; any
// instance running the pipeline polls it between the pipeline's phases.
type CancelFlag struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewCancelFlag constructs a CancelFlag.
func NewCancelFlag(client valkey.Client) *CancelFlag {
	return &CancelFlag{client: client, prefix: "formpipeline:cancel:", ttl: defaultCancelFlagTTL}
}

// Request marks requestID as cancel-requested.
func (f *CancelFlag) Request(ctx context.Context, requestID string) error {
	cmd := f.client.B().Set().Key(f.key(requestID)).Value("1").Ex(f.ttl).Build()
	return f.client.Do(ctx, cmd).Error()
}

// IsCancelled reports whether requestID has been marked cancel-requested.
func (f *CancelFlag) IsCancelled(ctx context.Context, requestID string) bool {
	resp := f.client.Do(ctx, f.client.B().Exists().Key(f.key(requestID)).Build())
	n, err := resp.ToInt64()
	if err != nil {
		return false
	}
	return n > 0
}

// Clear removes the flag once a request has finished, so a reused request
// id (after cleanup) never starts out pre-cancelled.
func (f *CancelFlag) Clear(ctx context.Context, requestID string) error {
	return f.client.Do(ctx, f.client.B().Del().Key(f.key(requestID)).Build()).Error()
}

func (f *CancelFlag) key(requestID string) string {
	return f.prefix + requestID
}
