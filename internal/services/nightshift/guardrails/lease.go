// Package guardrails provides the job lease that keeps replicas from running maintenance twice
package guardrails

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"oaiserver/internal/modkit/repokit"
	ptime "oaiserver/internal/platform/time"
	nsdom "oaiserver/internal/services/nightshift/domain"
)

// ErrLeaseHeld signals another worker owns the job lease already
var ErrLeaseHeld = errors.New("nightshift: job lease already held")

// Lease runs do while holding the job lease
type Lease func(ctx context.Context, job nsdom.Job, do nsdom.Work) error

// MakeLease claims the job row (auto-reclaim once the ttl passes), runs do
// outside the claim transaction, then records the outcome and clears the lease
func MakeLease(
	db repokit.TxRunner,
	binder repokit.Binder[nsdom.StorageRepo],
	owner string,
	ttl time.Duration,
	clock ptime.Clock,
) Lease {
	owner = fmt.Sprintf("%s:%d", owner, os.Getpid())
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if clock == nil {
		clock = ptime.System
	}

	return func(ctx context.Context, job nsdom.Job, do nsdom.Work) error {
		var claimed bool
		if err := db.Tx(ctx, func(q repokit.Queryer) error {
			ok, err := binder.Bind(q).Claim(ctx, job, owner, clock.Now(), ttl)
			claimed = ok
			return err
		}); err != nil {
			return err
		}
		if !claimed {
			return ErrLeaseHeld
		}

		detail, runErr := do(ctx)
		fin := nsdom.Finish{Status: nsdom.StatusOK, Detail: detail, At: clock.Now()}
		if runErr != nil {
			fin.Status, fin.Detail = nsdom.StatusError, runErr.Error()
		}
		// the outcome is written even when ctx was cancelled mid job
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := db.Tx(fctx, func(q repokit.Queryer) error {
			return binder.Bind(q).Finish(fctx, job, owner, fin)
		}); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	}
}
