// Pacote identidade deriva a chave de deduplicação de voto a partir da requisição.
//
// O endereço de rede é um token de melhor esforço: NAT, proxies e rotação de IPv6
// geram falsos duplicados ou deixam votos repetidos passarem.
package identidade

import (
	"net"
	"net/http"
	"strings"

	"github.com/marcelojr/votos-addon/internal/domain"
)

// EnderecoRede usa o endereço observado. Cabeçalhos de proxy só valem com ConfiarProxy,
// pois qualquer cliente consegue forjá-los.
type EnderecoRede struct {
	ConfiarProxy bool
}

func NewEnderecoRede(confiarProxy bool) EnderecoRede {
	return EnderecoRede{ConfiarProxy: confiarProxy}
}

func (e EnderecoRede) Identidade(r *http.Request) string {
	if e.ConfiarProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			primeiro, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(primeiro); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	host = strings.Trim(strings.TrimSpace(host), "[]")
	if host == "" {
		return domain.IPDesconhecido
	}
	return host
}

var _ domain.Identificador = EnderecoRede{}
