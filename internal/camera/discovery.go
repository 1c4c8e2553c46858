// Package camera finds camera channels in a recording and recovers their frames.
package camera

import (
	"regexp"
	"strings"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
	"github.com/roadscope/scene-processing-service/internal/infra/rosbag"
)

var (
	compressionMarkers = []string{"compressed"}
	cameraIndicators   = []string{"camera", "cam"}

	// Longest first so the most specific suffix is stripped.
	imageSuffixes = []string{
		"/image_rect_color/compressed",
		"/image_color/compressed",
		"/image_rect/compressed",
		"/image_raw/compressed",
		"/image/compressed",
		"/compressed",
	}

	unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// IsCameraTopic requires both an image-compression marker and a camera indicator in the
// topic name; compressed images of other sensors (range images, maps) do not qualify.
func IsCameraTopic(topic string) bool {
	t := strings.ToLower(topic)
	return containsAny(t, compressionMarkers) && containsAny(t, cameraIndicators)
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// CameraName derives a file-safe camera name from a topic: the last segment left after
// stripping a known image suffix, else the parent segment of the topic.
func CameraName(topic string) string {
	t := strings.TrimRight(topic, "/")
	lower := strings.ToLower(t)
	for _, suffix := range imageSuffixes {
		if strings.HasSuffix(lower, suffix) {
			if seg := lastSegment(t[:len(t)-len(suffix)]); seg != "" {
				return sanitize(seg)
			}
			break
		}
	}

	segs := segments(t)
	switch {
	case len(segs) >= 2:
		return sanitize(segs[len(segs)-2])
	case len(segs) == 1:
		return sanitize(segs[0])
	}
	return "camera"
}

func segments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func lastSegment(p string) string {
	segs := segments(p)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

func sanitize(name string) string {
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_")
	if name == "" {
		return "camera"
	}
	return name
}

// DiscoverTopics returns the qualifying camera topics in first-seen order, one entry per
// topic even when several connections publish it.
func DiscoverTopics(conns []*rosbag.Connection) []entity.CameraTopic {
	var topics []entity.CameraTopic
	index := make(map[string]int)
	for _, c := range conns {
		if !IsCameraTopic(c.Topic) {
			continue
		}
		if i, ok := index[c.Topic]; ok {
			topics[i].ChannelIDs = append(topics[i].ChannelIDs, c.ID)
			continue
		}
		index[c.Topic] = len(topics)
		topics = append(topics, entity.CameraTopic{
			Topic:      c.Topic,
			Name:       CameraName(c.Topic),
			ChannelIDs: []uint32{c.ID},
		})
	}
	return topics
}

// ResolveNames keeps one topic per camera name. A later topic replaces an earlier one that
// derived the same name, taking over its position; replaced topics are returned separately.
func ResolveNames(topics []entity.CameraTopic) (kept, replaced []entity.CameraTopic) {
	pos := make(map[string]int)
	for _, t := range topics {
		if i, ok := pos[t.Name]; ok {
			replaced = append(replaced, kept[i])
			kept[i] = t
			continue
		}
		pos[t.Name] = len(kept)
		kept = append(kept, t)
	}
	return kept, replaced
}
