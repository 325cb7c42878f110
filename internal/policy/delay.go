package policy

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"payreminder/internal/constants"
)

// DelayPolicy computes humanized inter-send pauses that grow more
// conservative with volume: every 50 messages sent in the current run raises
// both bounds by 20%, clamped at 5 and 10 minutes.
type DelayPolicy struct {
	baseMinSec int
	baseMaxSec int
	rng        *rand.Rand
}

func NewDelayPolicy(baseMinSec, baseMaxSec int) *DelayPolicy {
	if baseMinSec <= 0 {
		baseMinSec = constants.DefaultDelayMinSec
	}
	if baseMaxSec <= 0 {
		baseMaxSec = constants.DefaultDelayMaxSec
	}

	return &DelayPolicy{
		baseMinSec: baseMinSec,
		baseMaxSec: baseMaxSec,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// DelayRange returns the scaled (min, max) bounds for the next inter-send
// pause given how many messages the current run has already sent.
func (p *DelayPolicy) DelayRange(messagesSent int) (time.Duration, time.Duration) {
	factor := 1 + float64(messagesSent/constants.DelayEscalationStep)*constants.DelayEscalationFraction

	// Round, don't truncate: 1.4 is not exact in binary, so 45*1.4
	// lands just below 63 and truncation would lose a second.
	minSec := int(math.Round(float64(p.baseMinSec) * factor))
	maxSec := int(math.Round(float64(p.baseMaxSec) * factor))

	if minSec > constants.MaxDelayMinSec {
		minSec = constants.MaxDelayMinSec
	}
	if maxSec > constants.MaxDelayMaxSec {
		maxSec = constants.MaxDelayMaxSec
	}

	return time.Duration(minSec) * time.Second, time.Duration(maxSec) * time.Second
}

// Sample draws a uniformly random pause from the scaled range.
func (p *DelayPolicy) Sample(messagesSent int) time.Duration {
	min, max := p.DelayRange(messagesSent)
	if max <= min {
		return min
	}
	return min + time.Duration(p.rng.Int63n(int64(max-min)))
}

// EstimateSendTime renders a human estimate of a bulk run's duration:
// average per-message delay times the message count, plus one batch pause
// per completed batch.
func EstimateSendTime(numMessages int, min, max time.Duration, batchSize int, batchDelay time.Duration) string {
	if batchSize <= 0 {
		batchSize = constants.DefaultBatchSize
	}

	avgDelay := (min + max) / 2
	messageTime := time.Duration(numMessages) * avgDelay
	batchTime := time.Duration(numMessages/batchSize) * batchDelay
	total := messageTime + batchTime

	hours := int(total.Hours())
	minutes := int(total.Minutes()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dmin", hours, minutes)
	}
	return fmt.Sprintf("%d min", minutes)
}
