package memory

import (
	"testing"

	"github.com/nexuscore/agentkit/pkg/errs"
)

func TestValidateEmbedding(t *testing.T) {
	t.Run("nil embedding is always valid", func(t *testing.T) {
		if err := ValidateEmbedding(nil, 1536); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("matching dimension", func(t *testing.T) {
		if err := ValidateEmbedding(make([]float32, 768), 768); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("mismatched dimension", func(t *testing.T) {
		err := ValidateEmbedding(make([]float32, 768), 1536)
		if err == nil {
			t.Fatal("expected an error")
		}
		if err.Kind != errs.KindValidation {
			t.Errorf("Kind = %v, want KindValidation", err.Kind)
		}
	})
}
