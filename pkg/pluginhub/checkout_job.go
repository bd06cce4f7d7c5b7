package pluginhub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CheckoutStatus represents the status of a checkout job
type CheckoutStatus string

const (
	CheckoutStatusPending    CheckoutStatus = "pending"
	CheckoutStatusInProgress CheckoutStatus = "in_progress"
	CheckoutStatusCompleted  CheckoutStatus = "completed"
	CheckoutStatusFailed     CheckoutStatus = "failed"
	CheckoutStatusCancelled  CheckoutStatus = "cancelled"
	CheckoutStatusTimeout    CheckoutStatus = "timeout"
)

// Polling configuration
var (
	checkoutInitialInterval = 1 * time.Second
	checkoutMaxInterval     = 5 * time.Second
)

const checkoutBackoffFactor = 1.5

// checkoutJob polls the current subscription until it is active
type checkoutJob struct {
	service   *subscriptionService
	id        string
	startTime time.Time

	// Status tracking
	status     atomic.Value // CheckoutStatus
	checkCount atomic.Int32

	// Cancellation
	cancelled atomic.Bool

	mu           sync.RWMutex
	cancelFunc   context.CancelFunc
	endTime      *time.Time
	lastCheck    time.Time
	lastError    error
	subscription *Subscription
}

func newCheckoutJob(service *subscriptionService) *checkoutJob {
	job := &checkoutJob{
		service:   service,
		id:        "checkout-" + uuid.NewString(),
		startTime: time.Now(),
	}
	job.status.Store(CheckoutStatusPending)
	return job
}

// ID returns the job ID
func (j *checkoutJob) ID() string {
	return j.id
}

// Status returns the current status
func (j *checkoutJob) Status() CheckoutStatus {
	return j.status.Load().(CheckoutStatus)
}

// Subscription returns the last subscription seen, if any
func (j *checkoutJob) Subscription() *Subscription {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.subscription
}

// Wait polls with backoff until the subscription is active, the timeout
// passes or the job is cancelled
func (j *checkoutJob) Wait(ctx context.Context, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	j.mu.Lock()
	j.cancelFunc = cancel
	j.mu.Unlock()

	if j.cancelled.Load() {
		return errors.New("checkout job was cancelled")
	}

	j.status.Store(CheckoutStatusInProgress)

	currentInterval := checkoutInitialInterval
	ticker := time.NewTicker(currentInterval)
	defer ticker.Stop()

	for {
		select {
		case <-waitCtx.Done():
			if j.cancelled.Load() {
				j.finish(CheckoutStatusCancelled)
				return errors.New("checkout job was cancelled")
			}
			if ctx.Err() != nil {
				j.finish(CheckoutStatusCancelled)
				return ctx.Err()
			}

			j.finish(CheckoutStatusTimeout)
			return ErrCheckoutTimeout

		case <-ticker.C:
			active, err := j.checkStatus(waitCtx)
			if err != nil {
				j.setError(err)

				// Auth failures and 4xx end the job; outages keep polling
				if !IsRetryable(err) {
					j.finish(CheckoutStatusFailed)
					return err
				}
				continue
			}

			if active {
				j.finish(CheckoutStatusCompleted)
				return nil
			}

			// Exponential backoff every third check
			if j.checkCount.Load()%3 == 0 && currentInterval < checkoutMaxInterval {
				currentInterval = time.Duration(float64(currentInterval) * checkoutBackoffFactor)
				if currentInterval > checkoutMaxInterval {
					currentInterval = checkoutMaxInterval
				}
				ticker.Reset(currentInterval)
			}
		}
	}
}

// IsComplete checks if the subscription is active
func (j *checkoutJob) IsComplete(ctx context.Context) (bool, error) {
	switch status := j.Status(); status {
	case CheckoutStatusCompleted:
		return true, nil
	case CheckoutStatusFailed, CheckoutStatusCancelled, CheckoutStatusTimeout:
		return false, j.getError()
	default:
		return j.checkStatus(ctx)
	}
}

// Cancel stops a running Wait
func (j *checkoutJob) Cancel(ctx context.Context) error {
	j.cancelled.Store(true)

	j.mu.RLock()
	cancel := j.cancelFunc
	j.mu.RUnlock()

	if cancel != nil {
		cancel()
	}

	j.finish(CheckoutStatusCancelled)
	return nil
}

// GetMetrics returns job metrics
func (j *checkoutJob) GetMetrics() CheckoutJobMetrics {
	j.mu.RLock()
	defer j.mu.RUnlock()

	duration := time.Since(j.startTime)
	if j.endTime != nil {
		duration = j.endTime.Sub(j.startTime)
	}

	metrics := CheckoutJobMetrics{
		ID:         j.id,
		Status:     string(j.Status()),
		StartTime:  j.startTime,
		EndTime:    j.endTime,
		Duration:   duration,
		CheckCount: int(j.checkCount.Load()),
		LastCheck:  j.lastCheck,
		LastError:  j.lastError,
	}
	if j.subscription != nil {
		metrics.SubscriptionStatus = j.subscription.Status
	}
	return metrics
}

// checkStatus fetches the current subscription
func (j *checkoutJob) checkStatus(ctx context.Context) (bool, error) {
	j.checkCount.Add(1)

	sub, err := j.service.Current(ctx)

	j.mu.Lock()
	j.lastCheck = time.Now()
	if err == nil {
		j.subscription = sub
	}
	j.mu.Unlock()

	if err != nil {
		return false, errors.Wrap(err, "failed to check subscription status")
	}

	return sub != nil && sub.Status.IsActive(), nil
}

func (j *checkoutJob) finish(status CheckoutStatus) {
	j.status.Store(status)

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.endTime == nil {
		now := time.Now()
		j.endTime = &now
	}
}

func (j *checkoutJob) setError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lastError = err
}

func (j *checkoutJob) getError() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.lastError
}

// CheckoutJobMetrics contains metrics about a checkout job
type CheckoutJobMetrics struct {
	ID                 string             `json:"id"`
	Status             string             `json:"status"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus,omitempty"`
	StartTime          time.Time          `json:"startTime"`
	EndTime            *time.Time         `json:"endTime,omitempty"`
	Duration           time.Duration      `json:"duration"`
	CheckCount         int                `json:"checkCount"`
	LastCheck          time.Time          `json:"lastCheck"`
	LastError          error              `json:"lastError,omitempty"`
}
