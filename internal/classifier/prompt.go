package classifier

import (
	"fmt"
	"strings"
)

// DescribePrompt asks the vision model for a description the intent model can
// judge as if it were post text.
const DescribePrompt = `Describe this image in detail. Transcribe any visible text exactly, and note any symbols, slogans, flags or people that appear. Reply with plain prose only.`

const intentInstruction = `You are analysing a social media post to decide the author's stance toward the keyword %q.

Classify the intent as exactly one of:
- "supportive": the author expresses support, approval or endorsement of %q
- "critical": the author criticises, mocks or opposes %q
- "informative": the author neutrally reports on or mentions %q without taking a side

Respond with ONLY a JSON object, no other text:
{"intent": "supportive" | "critical" | "informative", "reasoning": "one or two sentences"}

%s`

// IntentPrompt builds the stance instruction for a post's text or, when text is
// empty, for a description of one of its images.
func IntentPrompt(keyword, text, imageDescription string) string {
	var subject strings.Builder
	if text != "" {
		subject.WriteString("Post text:\n")
		subject.WriteString(text)
	}
	if imageDescription != "" {
		if subject.Len() > 0 {
			subject.WriteString("\n\n")
		}
		subject.WriteString("Description of an image attached to the post:\n")
		subject.WriteString(imageDescription)
	}
	return fmt.Sprintf(intentInstruction, keyword, keyword, keyword, keyword, subject.String())
}
