// SPDX-License-Identifier: MIT

package worker

import (
	"github.com/spatelier/spatelier/internal/ledger"
	"github.com/spatelier/spatelier/internal/media"
)

// classifyRetryable decides whether a handler error earns another attempt.
// Permanent errors never retry. Transient errors retry while budget remains.
// Untagged errors are given the benefit of the doubt until the final
// attempt, then treated as permanent.
func (w *Worker) classifyRetryable(err error, job *ledger.Job) bool {
	switch media.KindOf(err) {
	case media.KindPermanent:
		return false
	case media.KindTransient:
		return job.RetryCount < job.MaxRetries
	default:
		return job.RetryCount < job.MaxRetries-1
	}
}
