package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"castgrab/internal/media"
)

func TestDecodeIsland(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantURL    string
		wantKind   media.FailureKind
		wantReason string
	}{
		{
			name:    "audio url present",
			text:    `{"props":{"pageProps":{"episode":{"audioFile":{"url":"https://cdn.example.com/a.mp3"}}}}}`,
			wantURL: "https://cdn.example.com/a.mp3",
		},
		{
			name:    "surrounding whitespace trimmed",
			text:    `  {"props":{"pageProps":{"episode":{"audioFile":{"url":"  https://cdn.example.com/a.mp3 "}}}}}`,
			wantURL: "https://cdn.example.com/a.mp3",
		},
		{
			name:       "empty text",
			text:       "",
			wantKind:   media.EmptyDataIsland,
			wantReason: "data island empty",
		},
		{
			name:       "whitespace only",
			text:       " \n\t ",
			wantKind:   media.EmptyDataIsland,
			wantReason: "data island empty",
		},
		{
			name:     "malformed json",
			text:     `{"props":`,
			wantKind: media.MalformedJSON,
		},
		{
			name:       "top level array",
			text:       `[1,2,3]`,
			wantKind:   media.MissingField,
			wantReason: "audio url missing at props",
		},
		{
			name:       "missing props",
			text:       `{"page":"/"}`,
			wantKind:   media.MissingField,
			wantReason: "audio url missing at props",
		},
		{
			name:       "missing pageProps",
			text:       `{"props":{}}`,
			wantKind:   media.MissingField,
			wantReason: "audio url missing at pageProps",
		},
		{
			name:       "null episode",
			text:       `{"props":{"pageProps":{"episode":null}}}`,
			wantKind:   media.MissingField,
			wantReason: "audio url missing at episode",
		},
		{
			name:       "audioFile is a string",
			text:       `{"props":{"pageProps":{"episode":{"audioFile":"a.mp3"}}}}`,
			wantKind:   media.MissingField,
			wantReason: "audio url missing at url",
		},
		{
			name:       "missing url",
			text:       `{"props":{"pageProps":{"episode":{"audioFile":{}}}}}`,
			wantKind:   media.MissingField,
			wantReason: "audio url missing at url",
		},
		{
			name:       "numeric url",
			text:       `{"props":{"pageProps":{"episode":{"audioFile":{"url":42}}}}}`,
			wantKind:   media.MissingField,
			wantReason: "audio url missing at url",
		},
		{
			name:       "blank url",
			text:       `{"props":{"pageProps":{"episode":{"audioFile":{"url":"   "}}}}}`,
			wantKind:   media.MissingField,
			wantReason: "audio url empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := decodeIsland(tt.text)
			if tt.wantURL != "" {
				assert.True(t, res.OK(), "reason: %s", res.Reason())
				assert.Equal(t, tt.wantURL, res.AudioURL())
				return
			}
			assert.False(t, res.OK())
			assert.Empty(t, res.AudioURL())
			assert.Equal(t, tt.wantKind, res.Kind())
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, res.Reason())
			}
		})
	}
}

func TestDecodeIslandMalformedReason(t *testing.T) {
	res := decodeIsland(`not json`)
	assert.True(t, strings.HasPrefix(res.Reason(), "json parse error: "), res.Reason())
}
