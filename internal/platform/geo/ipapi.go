// Pacote geo resolve país e cidade de um IP por uma API HTTP externa, com cache opcional.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marcelojr/votos-addon/internal/domain"
	"github.com/marcelojr/votos-addon/internal/platform/metrics"
)

const DefaultBaseURL = "https://ipapi.co"

// IPAPI consulta o serviço no formato do ipapi.co: GET {base}/{ip}/json/.
type IPAPI struct {
	baseURL string
	client  *http.Client
}

func NewIPAPI(baseURL string, timeout time.Duration) *IPAPI {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &IPAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type ipapiResposta struct {
	CountryName string `json:"country_name"`
	City        string `json:"city"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

func (g *IPAPI) Localizar(ctx context.Context, ip string) (domain.Localizacao, error) {
	if !Publico(ip) {
		metrics.ObserveGeoLookup("skipped")
		return domain.Localizacao{}, fmt.Errorf("%w: endereco nao publico %q", domain.ErrGeolocalizacaoIndisponivel, ip)
	}

	inicio := time.Now()
	defer func() { metrics.ObserveGeoLookupDuration(time.Since(inicio).Seconds()) }()

	endpoint := fmt.Sprintf("%s/%s/json/", g.baseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Localizacao{}, g.falha(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.Localizacao{}, g.falha(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Localizacao{}, g.falha(fmt.Errorf("status %d", resp.StatusCode))
	}

	var body ipapiResposta
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Localizacao{}, g.falha(fmt.Errorf("resposta invalida: %w", err))
	}
	if body.Error {
		return domain.Localizacao{}, g.falha(fmt.Errorf("api recusou: %s", body.Reason))
	}

	metrics.ObserveGeoLookup("ok")
	return domain.Localizacao{Pais: body.CountryName, Cidade: body.City}, nil
}

func (g *IPAPI) falha(err error) error {
	metrics.ObserveGeoLookup("error")
	return fmt.Errorf("%w: ipapi: %w", domain.ErrGeolocalizacaoIndisponivel, err)
}

// Publico indica se vale a pena consultar o IP; loopback, privados e placeholders nunca resolvem.
func Publico(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return !(parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() ||
		parsed.IsLinkLocalUnicast() || parsed.IsLinkLocalMulticast())
}

// Noop é usado quando a geolocalização está desligada por configuração.
type Noop struct{}

func (Noop) Localizar(context.Context, string) (domain.Localizacao, error) {
	metrics.ObserveGeoLookup("skipped")
	return domain.Localizacao{}, domain.ErrGeolocalizacaoIndisponivel
}

var (
	_ domain.Geolocalizador = (*IPAPI)(nil)
	_ domain.Geolocalizador = Noop{}
)
