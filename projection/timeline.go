// Package projection shapes stored messages for presentation.
// Handles calendar-day grouping and mine/theirs classification.
// Does not emit events or interact with transports directly.
package projection

import (
	"time"

	"github.com/samber/lo"

	"stampchat/domain"
)

// DayKeyLayout formats a message timestamp into its day bucket key.
const DayKeyLayout = "2006-01-02"

// Side tells a renderer which side of the timeline a message belongs to.
type Side string

const (
	Mine   Side = "mine"
	Theirs Side = "theirs"
)

// DayKey returns the calendar-day bucket for a timestamp, in UTC.
// The log's clock decides the bucket, not the viewer's timezone.
func DayKey(at time.Time) string {
	return at.UTC().Format(DayKeyLayout)
}

// GroupByDay splits an ordered message slice into per-day buckets.
// Within a bucket the input order is preserved; the returned keys are in
// the order the days first appear, so an ordered input yields ordered days.
func GroupByDay(messages []domain.Message) (map[string][]domain.Message, []string) {
	buckets := make(map[string][]domain.Message)
	var keys []string

	for _, msg := range messages {
		key := DayKey(msg.CreatedAt)
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], msg)
	}
	return buckets, keys
}

// Classify tells whether a message was sent by the viewing user.
func Classify(msg domain.Message, user domain.UserContext) Side {
	if msg.SenderID == user.UserID {
		return Mine
	}
	return Theirs
}

// Senders lists the distinct sender ids in timeline order.
func Senders(messages []domain.Message) []string {
	return lo.Uniq(lo.Map(messages, func(m domain.Message, _ int) string {
		return m.SenderID
	}))
}
