package transcript

import (
	"regexp"

	"github.com/dhcgn/kakaotalk-to-doc/model"
)

// Rule maps a content shape to a record type. Rewrite may be nil when the
// content is kept verbatim.
type Rule struct {
	Name    string
	Match   func(content string) bool
	Type    model.Type
	Rewrite func(content string) string
}

var (
	photoCountPattern = regexp.MustCompile(`^사진\s*\d+\s*장$`)
	photoPrefix       = regexp.MustCompile(`^사진`)
)

// DefaultRules is evaluated top-down; the first matching rule wins.
var DefaultRules = []Rule{
	{
		Name:  "photo",
		Match: func(c string) bool { return c == "사진" },
		Type:  model.TypeImage,
		Rewrite: func(c string) string {
			return model.ImageIconMarker + c
		},
	},
	{
		Name:  "photo-count",
		Match: photoCountPattern.MatchString,
		Type:  model.TypeImage,
		Rewrite: func(c string) string {
			return photoPrefix.ReplaceAllLiteralString(c, model.ImageIconMarker+"사진")
		},
	},
	{
		Name:  "video",
		Match: func(c string) bool { return c == "동영상" },
		Type:  model.TypeVideo,
		Rewrite: func(c string) string {
			return c + model.VideoGlyph
		},
	},
}

// Classify returns the type and (possibly rewritten) content for a joined
// message body. Content that matches no rule is a plain message.
func Classify(content string, rules []Rule) (model.Type, string) {
	for _, rule := range rules {
		if rule.Match == nil || !rule.Match(content) {
			continue
		}
		if rule.Rewrite != nil {
			content = rule.Rewrite(content)
		}
		return rule.Type, content
	}
	return model.TypeMessage, content
}
