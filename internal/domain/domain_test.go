package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawItemValidate(t *testing.T) {
	t.Parallel()

	base := RawItem{
		SourceID:   "tps-mci",
		ExternalID: "GO-1",
		Title:      "Assault",
		Category:   CategoryCrime,
		OccurredAt: time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, base.Validate())

	cases := map[string]func(*RawItem){
		"title":       func(i *RawItem) { i.Title = "  " },
		"occurred_at": func(i *RawItem) { i.OccurredAt = time.Time{} },
		"external_id": func(i *RawItem) { i.ExternalID = "" },
		"category":    func(i *RawItem) { i.Category = "weather" },
	}
	for field, mutate := range cases {
		item := base
		mutate(&item)

		var vErr *RecordValidationError
		err := item.Validate()
		require.True(t, errors.As(err, &vErr), "field %s", field)
		assert.Equal(t, field, vErr.Field)
	}
}

func TestDigestWindowIsHalfOpen(t *testing.T) {
	t.Parallel()

	end := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	w := WeekEnding(end)

	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(end.Add(-time.Second)))
	assert.False(t, w.Contains(end))
	assert.False(t, w.Contains(w.Start.Add(-time.Second)))
	assert.Equal(t, 13, w.LastDay().Day())
}

func TestSubscriberDeliveryChannels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Channel{ChannelEmail}, Subscriber{Email: "a@example.com"}.DeliveryChannels())
	assert.Nil(t, Subscriber{Phone: "+14165550100"}.DeliveryChannels())

	both := Subscriber{Email: "a@example.com", Phone: "+1", Channels: []Channel{ChannelEmail, ChannelSMS}}
	assert.Equal(t, []Channel{ChannelEmail, ChannelSMS}, both.DeliveryChannels())
	assert.Equal(t, "+1", both.Address(ChannelSMS))

	assert.Equal(t, "a@example.com", Subscriber{Email: "a@example.com"}.Identifier())
}
