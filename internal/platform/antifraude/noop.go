package antifraude

import (
	"context"

	"github.com/marcelojr/votos-addon/internal/domain"
)

// Noop é usado quando o rate limit está desligado via config.
type Noop struct{}

func NewNoop() Noop {
	return Noop{}
}

func (Noop) Validar(context.Context, string, string) error {
	return nil
}

var _ domain.Antifraude = Noop{}
