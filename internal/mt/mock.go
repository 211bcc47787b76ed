package mt

import (
	"context"
	"fmt"

	"github.com/voxlatelabs/voxlate-core/internal/lang"
)

type mockTranslator struct{}

func NewMockTranslator() Translator { return &mockTranslator{} }

func (m *mockTranslator) Translate(_ context.Context, text string, source, target lang.Code) (string, error) {
	return fmt.Sprintf("[%s->%s] %s", source, target, text), nil
}
