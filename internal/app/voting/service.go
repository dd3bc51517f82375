// Pacote voting implementa as regras da enquete: validação, um voto por identidade e leitura das parciais.
package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/marcelojr/votos-addon/internal/domain"
)

var (
	ErrEscolhaInvalida  = errors.New("voto invalido")
	ErrJaVotou          = errors.New("identidade ja votou")
	ErrDimensaoInvalida = errors.New("dimensao de agrupamento invalida")
)

const MensagemVotoRegistrado = "Voto registrado correctamente"

const DefaultGeoTimeout = 3 * time.Second

// Service não guarda estado; toda escrita passa pelo VoteStore.
type Service struct {
	store      domain.VoteStore
	geo        domain.Geolocalizador
	antifraude domain.Antifraude
	geoTimeout time.Duration
	logger     *slog.Logger
}

func NewService(
	store domain.VoteStore,
	geo domain.Geolocalizador,
	antifraude domain.Antifraude,
	geoTimeout time.Duration,
	logger *slog.Logger,
) *Service {
	if geoTimeout <= 0 {
		geoTimeout = DefaultGeoTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		geo:        geo,
		antifraude: antifraude,
		geoTimeout: geoTimeout,
		logger:     logger,
	}
}

// RegistrarVoto valida a escolha antes de tocar no armazenamento, enriquece os metadados fora
// de qualquer lock e delega ao store a checagem final e a gravação.
func (s *Service) RegistrarVoto(ctx context.Context, raw string, cliente domain.Metadados) (domain.Resultado, error) {
	escolha, ok := domain.ParseEscolha(raw)
	if !ok {
		return domain.Resultado{}, fmt.Errorf("%w: %q", ErrEscolhaInvalida, raw)
	}

	ip := strings.TrimSpace(cliente.IP)
	if ip == "" {
		ip = domain.IPDesconhecido
	}

	if s.antifraude != nil {
		if err := s.antifraude.Validar(ctx, ip, cliente.UserAgent); err != nil {
			return domain.Resultado{}, err
		}
	}

	// Checagem rápida evita a consulta externa de quem já votou; a definitiva fica no store.
	jaVotou, err := s.store.JaVotou(ctx, ip)
	if err != nil {
		return domain.Resultado{}, err
	}
	if jaVotou {
		return domain.Resultado{}, ErrJaVotou
	}

	loc := s.localizar(ctx, ip)
	meta := domain.Metadados{
		IP:        ip,
		Navegador: Classificar(cliente.UserAgent, RegrasNavegador),
		Sistema:   Classificar(cliente.UserAgent, RegrasSistema),
		Pais:      loc.Pais,
		Cidade:    loc.Cidade,
		UserAgent: cliente.UserAgent,
	}

	apuracao, err := s.store.RegistrarVoto(ctx, escolha, meta)
	if err != nil {
		if errors.Is(err, domain.ErrVotoDuplicado) {
			return domain.Resultado{}, ErrJaVotou
		}
		return domain.Resultado{}, err
	}

	return domain.Resultado{
		Mensagem:     MensagemVotoRegistrado,
		Apuracao:     apuracao,
		Porcentagens: apuracao.Porcentagens(),
	}, nil
}

func (s *Service) Estatisticas(ctx context.Context) (domain.Estatisticas, error) {
	conjunto, err := s.store.Carregar(ctx)
	if err != nil {
		return domain.Estatisticas{}, err
	}
	apuracao := conjunto.Apuracao()
	return domain.Estatisticas{
		Addon:        conjunto.AddonNombre,
		Apuracao:     apuracao,
		Porcentagens: apuracao.Porcentagens(),
	}, nil
}

// EstatisticasAgrupadas particiona todos os registros pela dimensão; valores ausentes
// formam o próprio grupo em vez de sumir da contagem.
func (s *Service) EstatisticasAgrupadas(ctx context.Context, dimensao domain.Dimensao) (domain.Agrupamento, error) {
	campo, padrao, err := seletor(dimensao)
	if err != nil {
		return domain.Agrupamento{}, err
	}

	conjunto, err := s.store.Carregar(ctx)
	if err != nil {
		return domain.Agrupamento{}, err
	}

	grupos := make(map[string]domain.Grupo)
	for _, r := range conjunto.Detalles {
		chave := strings.TrimSpace(campo(r))
		if chave == "" {
			chave = padrao
		}
		g := grupos[chave]
		switch r.Voto {
		case domain.EscolhaSi:
			g.Si++
		case domain.EscolhaNo:
			g.No++
		case domain.EscolhaQuiza:
			g.Quiza++
		}
		g.Total++
		grupos[chave] = g
	}

	return domain.Agrupamento{Addon: conjunto.AddonNombre, Grupos: grupos}, nil
}

func (s *Service) Detalhes(ctx context.Context) (domain.Detalhes, error) {
	conjunto, err := s.store.Carregar(ctx)
	if err != nil {
		return domain.Detalhes{}, err
	}
	return domain.Detalhes{
		Addon:     conjunto.AddonNombre,
		Apuracao:  conjunto.Apuracao(),
		Registros: conjunto.Detalles,
	}, nil
}

func (s *Service) VerificarVoto(ctx context.Context, identidade string) (bool, error) {
	return s.store.JaVotou(ctx, identidade)
}

// localizar nunca falha: timeout ou erro viram "No disponible".
func (s *Service) localizar(ctx context.Context, ip string) domain.Localizacao {
	loc := domain.Localizacao{Pais: domain.NoDisponible, Cidade: domain.NoDisponible}
	if s.geo == nil {
		return loc
	}

	ctx, cancel := context.WithTimeout(ctx, s.geoTimeout)
	defer cancel()

	res, err := s.geo.Localizar(ctx, ip)
	if err != nil {
		s.logger.Debug("geolocalizacao indisponivel", "ip", ip, "err", err)
		return loc
	}
	if res.Pais != "" {
		loc.Pais = res.Pais
	}
	if res.Cidade != "" {
		loc.Cidade = res.Cidade
	}
	return loc
}

func seletor(dimensao domain.Dimensao) (func(domain.RegistroVoto) string, string, error) {
	switch dimensao {
	case domain.DimensaoPais:
		return func(r domain.RegistroVoto) string { return r.Pais }, domain.NoDisponible, nil
	case domain.DimensaoNavegador:
		return func(r domain.RegistroVoto) string { return r.Navegador }, domain.Desconocido, nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrDimensaoInvalida, dimensao)
	}
}

var _ domain.VotingService = (*Service)(nil)
