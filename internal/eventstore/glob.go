package eventstore

import "strings"

// TopicMatches reports whether a dotted event type matches a dotted glob
// pattern. Wildcards are suffix-only: "*" matches any topic, "a.*" matches
// any topic whose first segment is "a" and that has at least one further
// segment, "a.b.*" requires the first two segments to be "a" and "b", and a
// pattern with no "*" requires an exact match (spec Testable Property #7).
func TopicMatches(pattern, topic string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return pattern == topic
	}
	if !strings.HasSuffix(pattern, ".*") {
		return false
	}

	prefix := strings.TrimSuffix(pattern, ".*")
	prefixSegs := strings.Split(prefix, ".")
	topicSegs := strings.Split(topic, ".")

	if len(topicSegs) <= len(prefixSegs) {
		return false
	}
	for i, seg := range prefixSegs {
		if topicSegs[i] != seg {
			return false
		}
	}
	return true
}
