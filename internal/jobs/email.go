package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/verdandi/internal/email"
)

// Job type constants for email jobs
const (
	JobTypeOrderCompleted = "email:order_completed"
	JobTypeOrderCancelled = "email:order_cancelled"
	JobTypeOrderPaid      = "email:order_paid"
	JobTypeOrderRefunded  = "email:order_refunded"
	JobTypePaymentVoided  = "email:payment_voided"
)

const (
	emailQueue          = "email"
	emailPriority       = 30
	emailMaxRetries     = 3
	emailTimeoutSeconds = 30
)

// The payloads are the email data structs themselves.

func EnqueueOrderCompletedEmail(ctx context.Context, q Enqueuer, payload email.OrderCompletedEmail) error {
	return enqueueJSON(ctx, q, JobTypeOrderCompleted, emailQueue, emailPriority, emailMaxRetries, emailTimeoutSeconds, payload)
}

func EnqueueOrderCancelledEmail(ctx context.Context, q Enqueuer, payload email.OrderCancelledEmail) error {
	// Cancellation mail goes out ahead of routine confirmations.
	return enqueueJSON(ctx, q, JobTypeOrderCancelled, emailQueue, emailPriority+10, emailMaxRetries, emailTimeoutSeconds, payload)
}

func EnqueueOrderPaidEmail(ctx context.Context, q Enqueuer, payload email.OrderPaidEmail) error {
	return enqueueJSON(ctx, q, JobTypeOrderPaid, emailQueue, emailPriority, emailMaxRetries, emailTimeoutSeconds, payload)
}

func EnqueueOrderRefundedEmail(ctx context.Context, q Enqueuer, payload email.OrderRefundedEmail) error {
	return enqueueJSON(ctx, q, JobTypeOrderRefunded, emailQueue, emailPriority, emailMaxRetries, emailTimeoutSeconds, payload)
}

func EnqueuePaymentVoidedEmail(ctx context.Context, q Enqueuer, payload email.PaymentVoidedEmail) error {
	return enqueueJSON(ctx, q, JobTypePaymentVoided, emailQueue, emailPriority, emailMaxRetries, emailTimeoutSeconds, payload)
}

// IsEmailJob reports whether jobType is handled by ProcessEmailJob.
func IsEmailJob(jobType string) bool {
	switch jobType {
	case JobTypeOrderCompleted, JobTypeOrderCancelled, JobTypeOrderPaid,
		JobTypeOrderRefunded, JobTypePaymentVoided:
		return true
	}
	return false
}

// ProcessEmailJob decodes the payload for the job type and sends it.
func ProcessEmailJob(ctx context.Context, job *Job, emailService *email.Service) error {
	var data email.EmailTemplate

	switch job.JobType {
	case JobTypeOrderCompleted:
		var payload email.OrderCompletedEmail
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal order completed payload: %w", err)
		}
		data = payload

	case JobTypeOrderCancelled:
		var payload email.OrderCancelledEmail
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal order cancelled payload: %w", err)
		}
		data = payload

	case JobTypeOrderPaid:
		var payload email.OrderPaidEmail
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal order paid payload: %w", err)
		}
		data = payload

	case JobTypeOrderRefunded:
		var payload email.OrderRefundedEmail
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal order refunded payload: %w", err)
		}
		data = payload

	case JobTypePaymentVoided:
		var payload email.PaymentVoidedEmail
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal payment voided payload: %w", err)
		}
		data = payload

	default:
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}

	_, err := emailService.Send(ctx, data)
	return err
}
