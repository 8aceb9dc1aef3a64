package brain

import "regexp"

// customEmojiPattern matches Discord custom emoji markup, static or animated.
// Examples: "<:pepe_sad:112233>", "<a:loading:998877>"
var customEmojiPattern = regexp.MustCompile(`<a?:(\w{2,32}):\d{15,21}>`)

// SanitizeContent rewrites Discord custom emoji markup to its plain :name: form
// so snowflake ids never reach the model. Returns the cleaned content and the
// number of markers rewritten.
func SanitizeContent(content string) (string, int) {
	matches := customEmojiPattern.FindAllStringIndex(content, -1)
	count := len(matches)
	if count == 0 {
		return content, 0
	}
	return customEmojiPattern.ReplaceAllString(content, ":$1:"), count
}

func promptContent(content string) string {
	cleaned, _ := SanitizeContent(content)
	return cleaned
}
