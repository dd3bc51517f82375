package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelojr/votos-addon/internal/domain"
)

const (
	campoPais   = "pais"
	campoCidade = "cidade"
)

// GeoCache guarda localizações já resolvidas em hashes com TTL, uma chave por IP.
type GeoCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewGeoCache(client *redis.Client, prefix string, ttl time.Duration) *GeoCache {
	return &GeoCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Obter devolve false quando o IP ainda não foi resolvido ou a entrada expirou.
func (c *GeoCache) Obter(ctx context.Context, ip string) (domain.Localizacao, bool, error) {
	valores, err := c.client.HGetAll(ctx, c.key(ip)).Result()
	if err != nil {
		return domain.Localizacao{}, false, fmt.Errorf("redis geo cache: ler %s: %w", ip, err)
	}
	if len(valores) == 0 {
		return domain.Localizacao{}, false, nil
	}
	return domain.Localizacao{Pais: valores[campoPais], Cidade: valores[campoCidade]}, true, nil
}

func (c *GeoCache) Guardar(ctx context.Context, ip string, loc domain.Localizacao) error {
	key := c.key(ip)
	// HSET e EXPIRE vão juntos para nunca deixar entrada sem validade.
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, campoPais, loc.Pais, campoCidade, loc.Cidade)
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis geo cache: gravar %s: %w", ip, err)
	}
	return nil
}

func (c *GeoCache) key(ip string) string {
	if c.prefix == "" {
		return ip
	}
	return fmt.Sprintf("%s:%s", c.prefix, ip)
}
