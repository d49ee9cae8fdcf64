package mention

import (
	"regexp"
	"sort"

	"github.com/secmon-lab/slackdir/pkg/domain/model"
)

// Kind is the type of a Segment
type Kind string

const (
	KindText    Kind = "text"
	KindMention Kind = "mention"
	KindSpecial Kind = "special"
)

// Segment is one piece of a parsed message. Concatenating Raw of every segment in order
// reproduces the parsed text exactly.
type Segment struct {
	Kind    Kind              `json:"kind"`
	Content string            `json:"content,omitempty"` // text only
	UserID  model.SlackUserID `json:"user_id,omitempty"` // mention only
	Token   string            `json:"token,omitempty"`   // special only
	Label   string            `json:"label,omitempty"`   // "|label" part of a mention or special
	Raw     string            `json:"raw"`
	Start   int               `json:"start"` // byte offset in the parsed text
}

var (
	// <@U123> or <@U123|name>
	userMentionPattern = regexp.MustCompile(`<@([A-Za-z0-9]+)(?:\|([^<>]*))?>`)
	// <!here>, <!channel|channel>, <!subteam^S123|@team>
	specialMentionPattern = regexp.MustCompile(`<!([^<>|]+)(?:\|([^<>]*))?>`)
)

type match struct {
	kind  Kind
	start int
	end   int
	value string
	label string
}

func findAll(pattern *regexp.Regexp, kind Kind, text string) []match {
	var matches []match
	for _, loc := range pattern.FindAllStringSubmatchIndex(text, -1) {
		m := match{
			kind:  kind,
			start: loc[0],
			end:   loc[1],
			value: text[loc[2]:loc[3]],
		}
		if loc[4] >= 0 {
			m.label = text[loc[4]:loc[5]]
		}
		matches = append(matches, m)
	}
	return matches
}

// Parse splits text into ordered text, mention and special segments.
//
// Both mention families are located independently and merged by start offset. When two
// matches overlap, the one starting first wins, then the longer one; a match starting inside
// an already consumed span is skipped and its characters stay in the neighbouring segments.
func Parse(text string) []Segment {
	if text == "" {
		return []Segment{}
	}

	matches := append(
		findAll(userMentionPattern, KindMention, text),
		findAll(specialMentionPattern, KindSpecial, text)...,
	)
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].end-matches[i].start > matches[j].end-matches[j].start
	})

	segments := make([]Segment, 0, len(matches)*2+1)
	cursor := 0
	for _, m := range matches {
		if m.start < cursor {
			continue
		}

		if m.start > cursor {
			segments = append(segments, textSegment(text, cursor, m.start))
		}

		seg := Segment{
			Kind:  m.kind,
			Label: m.label,
			Raw:   text[m.start:m.end],
			Start: m.start,
		}
		switch m.kind {
		case KindMention:
			seg.UserID = model.SlackUserID(m.value)
		case KindSpecial:
			seg.Token = m.value
		}
		segments = append(segments, seg)
		cursor = m.end
	}

	if cursor < len(text) {
		segments = append(segments, textSegment(text, cursor, len(text)))
	}

	return segments
}

func textSegment(text string, start, end int) Segment {
	return Segment{
		Kind:    KindText,
		Content: text[start:end],
		Raw:     text[start:end],
		Start:   start,
	}
}

// UserIDs returns the distinct user IDs mentioned in segments, in order of first appearance
func UserIDs(segments []Segment) []model.SlackUserID {
	seen := make(map[model.SlackUserID]struct{})
	var ids []model.SlackUserID
	for _, seg := range segments {
		if seg.Kind != KindMention {
			continue
		}
		if _, ok := seen[seg.UserID]; ok {
			continue
		}
		seen[seg.UserID] = struct{}{}
		ids = append(ids, seg.UserID)
	}
	return ids
}
