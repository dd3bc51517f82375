package domain

import (
	"context"
	"net/http"
	"time"
)

// VoteStore é o único escritor do Conjunto persistido.
type VoteStore interface {
	Carregar(ctx context.Context) (Conjunto, error)
	JaVotou(ctx context.Context, identidade string) (bool, error)
	RegistrarVoto(ctx context.Context, escolha Escolha, meta Metadados) (Apuracao, error)
}

// Localizacao é o resultado de uma consulta de geolocalização por IP.
type Localizacao struct {
	Pais   string
	Cidade string
}

type Geolocalizador interface {
	Localizar(ctx context.Context, ip string) (Localizacao, error)
}

// Identificador deriva a chave de deduplicação de uma requisição.
type Identificador interface {
	Identidade(r *http.Request) string
}

type Antifraude interface {
	Validar(ctx context.Context, identidade, userAgent string) error
}

type Clock interface {
	Agora() time.Time
}

type VotingService interface {
	RegistrarVoto(ctx context.Context, escolha string, cliente Metadados) (Resultado, error)
	Estatisticas(ctx context.Context) (Estatisticas, error)
	EstatisticasAgrupadas(ctx context.Context, dimensao Dimensao) (Agrupamento, error)
	Detalhes(ctx context.Context) (Detalhes, error)
	VerificarVoto(ctx context.Context, identidade string) (bool, error)
}
