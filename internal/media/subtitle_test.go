// SPDX-License-Identifier: MIT

package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeProber struct {
	titles []string
	err    error
}

func (f fakeProber) SubtitleTitles(_ context.Context, _ string) ([]string, error) {
	return f.titles, f.err
}

func TestSubtitleTitle(t *testing.T) {
	assert.Equal(t, "WhisperAI (en)", SubtitleTitle("WhisperAI", "en"))
	assert.Equal(t, "WhisperAI", SubtitleTitle("WhisperAI", ""))
}

func TestHasMarkedSubtitles(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		prober fakeProber
		want   bool
	}{
		{"exact marker", fakeProber{titles: []string{"WhisperAI (en)"}}, true},
		{"case insensitive", fakeProber{titles: []string{"whisperai"}}, true},
		{"foreign track only", fakeProber{titles: []string{"English", "Director Commentary"}}, false},
		{"no subtitle streams", fakeProber{}, false},
		{"probe failure falls through", fakeProber{err: errors.New("no such file")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HasMarkedSubtitles(ctx, tc.prober, "/x.mkv", "WhisperAI"))
		})
	}
}

func TestSegmentsToSRT(t *testing.T) {
	srt := SegmentsToSRT([]TranscriptionSegment{
		{Start: 0, End: 2.5, Text: " hello world "},
		{Start: 3661.25, End: 3662, Text: "an hour in"},
	})

	expected := "1\n00:00:00,000 --> 00:00:02,500\nhello world\n\n" +
		"2\n01:01:01,250 --> 01:01:02,000\nan hour in\n\n"
	assert.Equal(t, expected, string(srt))
}

func TestSegmentsToSRTEmpty(t *testing.T) {
	assert.Empty(t, SegmentsToSRT(nil))
}

func TestErrorTagging(t *testing.T) {
	base := errors.New("boom")

	assert.Equal(t, KindTransient, KindOf(Transient(base)))
	assert.Equal(t, KindPermanent, KindOf(Permanent(base)))
	assert.Equal(t, KindUnknown, KindOf(base))
	assert.Equal(t, KindUnknown, KindOf(nil))

	// Tagging survives wrapping.
	wrapped := errors.Join(errors.New("context"), Transient(base))
	assert.Equal(t, KindTransient, KindOf(wrapped))

	assert.Nil(t, Transient(nil))
	assert.Nil(t, Permanent(nil))
	assert.ErrorIs(t, Transient(base), base)
}
