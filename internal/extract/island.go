package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"castgrab/internal/media"
)

// dataIslandID is the id of the script element Next.js pages embed their
// server props in.
const dataIslandID = "__NEXT_DATA__"

// audioURLPath is where episode pages keep the direct audio file URL.
var audioURLPath = []string{"props", "pageProps", "episode", "audioFile", "url"}

// decodeIsland parses the data island's text content and returns the audio
// URL. Failures carry the same kinds and reasons for both strategies.
func decodeIsland(text string) media.Result {
	if strings.TrimSpace(text) == "" {
		return media.Failure(media.EmptyDataIsland, "data island empty")
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return media.Failure(media.MalformedJSON, fmt.Sprintf("json parse error: %v", err))
	}

	return audioURLFrom(doc)
}

// audioURLFrom walks audioURLPath and reports the first segment that is
// absent. A non-object along the way counts as the next segment missing.
func audioURLFrom(doc any) media.Result {
	node := doc
	for _, seg := range audioURLPath {
		obj, ok := node.(map[string]any)
		if !ok {
			return media.Failure(media.MissingField, "audio url missing at "+seg)
		}
		next, ok := obj[seg]
		if !ok || next == nil {
			return media.Failure(media.MissingField, "audio url missing at "+seg)
		}
		node = next
	}

	url, ok := node.(string)
	if !ok {
		return media.Failure(media.MissingField, "audio url missing at "+audioURLPath[len(audioURLPath)-1])
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return media.Failure(media.MissingField, "audio url empty")
	}

	return media.Success(url)
}
