package geo

import (
	"context"
	"log/slog"

	"github.com/marcelojr/votos-addon/internal/domain"
	"github.com/marcelojr/votos-addon/internal/platform/metrics"
)

type armazemLocalizacao interface {
	Obter(ctx context.Context, ip string) (domain.Localizacao, bool, error)
	Guardar(ctx context.Context, ip string, loc domain.Localizacao) error
}

// Cache evita repetir a consulta externa para o mesmo IP. Falhas do cache nunca impedem a consulta.
type Cache struct {
	next    domain.Geolocalizador
	armazem armazemLocalizacao
	logger  *slog.Logger
}

func NewCache(next domain.Geolocalizador, armazem armazemLocalizacao, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{next: next, armazem: armazem, logger: logger}
}

func (c *Cache) Localizar(ctx context.Context, ip string) (domain.Localizacao, error) {
	if !Publico(ip) {
		return c.next.Localizar(ctx, ip)
	}

	loc, ok, err := c.armazem.Obter(ctx, ip)
	if err != nil {
		c.logger.Warn("cache de geolocalizacao indisponivel", "err", err)
	} else if ok {
		metrics.ObserveGeoLookup("cache_hit")
		return loc, nil
	}

	loc, err = c.next.Localizar(ctx, ip)
	if err != nil {
		return domain.Localizacao{}, err
	}

	if err := c.armazem.Guardar(ctx, ip, loc); err != nil {
		c.logger.Warn("falha ao guardar geolocalizacao no cache", "err", err)
	}
	return loc, nil
}

var _ domain.Geolocalizador = (*Cache)(nil)
