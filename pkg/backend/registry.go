package backend

import (
	"fmt"

	"github.com/odvcencio/promptgate/pkg/config"
	apperrors "github.com/odvcencio/promptgate/pkg/errors"
)

// Registry holds the closed two-backend set. Strict pairing: every backend
// has exactly one alternate, so fallback never has to choose among
// candidates.
type Registry struct {
	claude *Claude
	gemini *Gemini
}

// NewRegistry builds the backend pair from configuration.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		claude: NewClaude(cfg.Claude.Command, cfg.Claude.Model),
		gemini: NewGemini(cfg.Gemini.Command, cfg.Gemini.Model),
	}
}

// For returns the backend with the given name.
func (r *Registry) For(name string) (Backend, *apperrors.Error) {
	switch name {
	case NameClaude:
		return r.claude, nil
	case NameGemini:
		return r.gemini, nil
	default:
		return nil, apperrors.New(apperrors.ErrCodeValidation,
			fmt.Sprintf("unknown backend %q", name))
	}
}

// Other returns the alternate of the given backend.
func (r *Registry) Other(name string) Backend {
	if name == NameClaude {
		return r.gemini
	}
	return r.claude
}

// List returns both backends in stable order.
func (r *Registry) List() []Backend {
	return []Backend{r.claude, r.gemini}
}
