package adapter

import "sort"

// PlatformSpec is one entry of the fixed platform registry: the length
// ceiling plus the style and format contract handed to the generation step.
type PlatformSpec struct {
	MaxLength int
	Style     string
	Format    string
}

const (
	PlatformTwitter  = "twitter"
	PlatformMastodon = "mastodon"
	PlatformReddit   = "reddit"
)

var registry = map[string]PlatformSpec{
	PlatformTwitter: {
		MaxLength: 280,
		Style:     "Concise, punchy, engaging. Use line breaks for readability. May include 1-2 relevant hashtags.",
		Format:    "Short-form microblog",
	},
	PlatformMastodon: {
		MaxLength: 500,
		Style:     "Conversational, community-focused. Include 3-5 relevant hashtags. More detailed than Twitter.",
		Format:    "Medium-form social post",
	},
	PlatformReddit: {
		MaxLength: 2000,
		Style:     "Detailed, conversational, authentic. The FIRST LINE is the post title (no markdown, no \"Title:\" prefix). The rest is the body (2-4 paragraphs). No hashtags.",
		Format:    "Long-form discussion post with title on first line",
	},
}

// Spec looks up a platform's registry entry.
func Spec(platform string) (PlatformSpec, bool) {
	spec, ok := registry[platform]
	return spec, ok
}

// Platforms returns the registered platform names in stable order.
func Platforms() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
