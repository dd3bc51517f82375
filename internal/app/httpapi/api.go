// Pacote httpapi expõe os handlers REST e traduz requisições HTTP para o serviço de votação.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/marcelojr/votos-addon/internal/app/voting"
	"github.com/marcelojr/votos-addon/internal/domain"
	"github.com/marcelojr/votos-addon/internal/platform/antifraude"
	"github.com/marcelojr/votos-addon/internal/platform/metrics"
)

const (
	msgVotoInvalido      = "Voto inválido"
	msgDimensaoInvalida  = "Dimensión inválida"
	msgJaVotou           = "Ya has votado desde esta IP"
	msgLimiteAtingido    = "Demasiados intentos, intenta más tarde"
	msgNaoAutorizado     = "No autorizado"
	msgErroRegistrar     = "Error al registrar el voto"
	msgErroEstatisticas  = "Error al obtener estadísticas"
	msgErroDetalhes      = "Error al obtener detalles"
	msgErroVerificarVoto = "Error al verificar voto"
)

// maxCorpoVoto limita o corpo de /registrar-voto; o payload legítimo tem poucos bytes.
const maxCorpoVoto = 4 << 10

// API empacota handlers HTTP ligados ao serviço de votação e ao logger.
type API struct {
	service       domain.VotingService
	identificador domain.Identificador
	consultaToken string
	logger        *slog.Logger
	validate      *validator.Validate
}

func New(service domain.VotingService, identificador domain.Identificador, consultaToken string, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		service:       service,
		identificador: identificador,
		consultaToken: consultaToken,
		logger:        logger,
		validate:      validator.New(),
	}
}

func (a *API) Register(r chi.Router) {
	r.Get("/healthz", a.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/registrar-voto", a.registrarVoto)
		r.Get("/estadisticas-votos", a.estadisticas)
		r.Get("/detalles-votos", a.detalhes)
		r.Get("/estadisticas-pais", a.agrupadas(domain.DimensaoPais, "estadisticasPais"))
		r.Get("/estadisticas-navegador", a.agrupadas(domain.DimensaoNavegador, "estadisticasNavegador"))
		r.Get("/verificar-voto", a.verificarVoto)
	})
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type votoRequest struct {
	Voto string `json:"voto" validate:"required,oneof=si no quiza"`
}

type porcentagensResponse struct {
	Si    float64 `json:"si"`
	No    float64 `json:"no"`
	Quiza float64 `json:"quiza"`
}

type votosResponse struct {
	Si          int                  `json:"si"`
	No          int                  `json:"no"`
	Quiza       int                  `json:"quiza"`
	Total       int                  `json:"total"`
	Porcentajes porcentagensResponse `json:"porcentajes"`
}

type registrarResponse struct {
	Exito   bool          `json:"exito"`
	Mensaje string        `json:"mensaje"`
	Votos   votosResponse `json:"votos"`
}

type estatisticasResponse struct {
	Addon string        `json:"addon"`
	Votos votosResponse `json:"votos"`
}

type resumoResponse struct {
	TotalVotos int `json:"totalVotos"`
	Si         int `json:"si"`
	No         int `json:"no"`
	Quiza      int `json:"quiza"`
}

type detalhesResponse struct {
	Addon    string                `json:"addon"`
	Resumen  resumoResponse        `json:"resumen"`
	Detalles []domain.RegistroVoto `json:"detalles"`
}

type verificarResponse struct {
	YaVoto bool   `json:"yaVoto"`
	IP     string `json:"ip"`
}

type erroResponse struct {
	Exito bool   `json:"exito"`
	Error string `json:"error"`
}

func novoVotos(a domain.Apuracao, p domain.Porcentagens) votosResponse {
	return votosResponse{
		Si:          a.Si,
		No:          a.No,
		Quiza:       a.Quiza,
		Total:       a.Total,
		Porcentajes: porcentagensResponse(p),
	}
}

func (a *API) registrarVoto(w http.ResponseWriter, r *http.Request) {
	logger := loggerDe(r.Context(), a.logger)

	var req votoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCorpoVoto)).Decode(&req); err != nil {
		metrics.ObserveVoteRequest("invalid")
		logger.Warn("payload invalido ao registrar voto", "err", err)
		responderJSON(w, http.StatusBadRequest, erroResponse{Error: msgVotoInvalido})
		return
	}
	if err := a.validate.Struct(req); err != nil {
		metrics.ObserveVoteRequest("invalid")
		logger.Warn("voto invalido", "voto", req.Voto)
		responderJSON(w, http.StatusBadRequest, erroResponse{Error: msgVotoInvalido})
		return
	}

	cliente := domain.Metadados{
		IP:        a.identificador.Identidade(r),
		UserAgent: r.UserAgent(),
	}

	resultado, err := a.service.RegistrarVoto(r.Context(), req.Voto, cliente)
	if err != nil {
		status := statusFromError(err)
		metrics.ObserveVoteRequest(status)
		logger.Warn("falha ao registrar voto", "err", err, "ip", cliente.IP, "status", status)
		responderErro(w, err, msgErroRegistrar)
		return
	}

	metrics.ObserveVoteRequest("accepted")
	responderJSON(w, http.StatusOK, registrarResponse{
		Exito:   true,
		Mensaje: resultado.Mensagem,
		Votos:   novoVotos(resultado.Apuracao, resultado.Porcentagens),
	})
	logger.Info("voto registrado", "voto", req.Voto, "ip", cliente.IP, "total", resultado.Apuracao.Total)
}

func (a *API) estadisticas(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.Estatisticas(r.Context())
	if err != nil {
		loggerDe(r.Context(), a.logger).Error("erro ao obter estatisticas", "err", err)
		responderErro(w, err, msgErroEstatisticas)
		return
	}

	responderJSON(w, http.StatusOK, estatisticasResponse{
		Addon: stats.Addon,
		Votos: novoVotos(stats.Apuracao, stats.Porcentagens),
	})
}

func (a *API) detalhes(w http.ResponseWriter, r *http.Request) {
	if a.consultaToken == "" {
		http.NotFound(w, r)
		return
	}
	if !tokenValido(r, a.consultaToken) {
		responderJSON(w, http.StatusUnauthorized, erroResponse{Error: msgNaoAutorizado})
		return
	}

	detalhes, err := a.service.Detalhes(r.Context())
	if err != nil {
		loggerDe(r.Context(), a.logger).Error("erro ao obter detalhes", "err", err)
		responderErro(w, err, msgErroDetalhes)
		return
	}

	registros := detalhes.Registros
	if registros == nil {
		registros = []domain.RegistroVoto{}
	}
	responderJSON(w, http.StatusOK, detalhesResponse{
		Addon: detalhes.Addon,
		Resumen: resumoResponse{
			TotalVotos: detalhes.Apuracao.Total,
			Si:         detalhes.Apuracao.Si,
			No:         detalhes.Apuracao.No,
			Quiza:      detalhes.Apuracao.Quiza,
		},
		Detalles: registros,
	})
}

// agrupadas serve as duas rotas de agrupamento; campo é a chave do mapa na resposta.
func (a *API) agrupadas(dimensao domain.Dimensao, campo string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		agrupamento, err := a.service.EstatisticasAgrupadas(r.Context(), dimensao)
		if err != nil {
			loggerDe(r.Context(), a.logger).Error("erro ao agrupar votos", "err", err, "dimensao", dimensao)
			responderErro(w, err, msgErroEstatisticas)
			return
		}

		grupos := agrupamento.Grupos
		if grupos == nil {
			grupos = map[string]domain.Grupo{}
		}
		responderJSON(w, http.StatusOK, map[string]any{
			"addon": agrupamento.Addon,
			campo:   grupos,
		})
	}
}

func (a *API) verificarVoto(w http.ResponseWriter, r *http.Request) {
	ip := a.identificador.Identidade(r)

	jaVotou, err := a.service.VerificarVoto(r.Context(), ip)
	if err != nil {
		loggerDe(r.Context(), a.logger).Error("erro ao verificar voto", "err", err, "ip", ip)
		responderErro(w, err, msgErroVerificarVoto)
		return
	}

	responderJSON(w, http.StatusOK, verificarResponse{YaVoto: jaVotou, IP: ip})
}

func tokenValido(r *http.Request, esperado string) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(esperado)) == 1
}

func responderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// responderErro nunca expõe o erro interno; padrao é a mensagem dos 500 de cada rota.
func responderErro(w http.ResponseWriter, err error, padrao string) {
	status := http.StatusInternalServerError
	mensagem := padrao

	switch {
	case errors.Is(err, voting.ErrEscolhaInvalida):
		status, mensagem = http.StatusBadRequest, msgVotoInvalido
	case errors.Is(err, voting.ErrDimensaoInvalida):
		status, mensagem = http.StatusBadRequest, msgDimensaoInvalida
	case errors.Is(err, voting.ErrJaVotou):
		status, mensagem = http.StatusForbidden, msgJaVotou
	case errors.Is(err, antifraude.ErrRateLimitExceeded):
		status, mensagem = http.StatusTooManyRequests, msgLimiteAtingido
	}

	responderJSON(w, status, erroResponse{Error: mensagem})
}

func statusFromError(err error) string {
	switch {
	case errors.Is(err, antifraude.ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, voting.ErrJaVotou):
		return "duplicate"
	case errors.Is(err, voting.ErrEscolhaInvalida):
		return "invalid"
	default:
		return "error"
	}
}
