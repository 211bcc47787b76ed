package mt

import (
	"context"
	"fmt"

	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

// Translator abstracts MT backends. source may be Auto, in which case
// the backend detects it; target is always concrete.
type Translator interface {
	Translate(ctx context.Context, text string, source, target lang.Code) (string, error)
}

const translatorSystemPrompt = "You are a translation engine. Reply with the translation only, no explanations."

// translationPrompt renders the instruction the LLM-backed translators
// share. Display names read better than raw codes in prompts.
func translationPrompt(text string, source, target lang.Code) string {
	targetName, ok := lang.Name(target)
	if !ok {
		targetName = target.String()
	}
	if source.IsAuto() {
		return fmt.Sprintf("Translate the following text to %s:\n\n%s", targetName, text)
	}
	sourceName, ok := lang.Name(source)
	if !ok {
		sourceName = source.String()
	}
	return fmt.Sprintf("Translate the following text from %s to %s:\n\n%s", sourceName, targetName, text)
}
