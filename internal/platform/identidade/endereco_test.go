package identidade

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcelojr/votos-addon/internal/domain"
)

func TestEnderecoRede_Identidade(t *testing.T) {
	casos := []struct {
		nome         string
		confiarProxy bool
		remoteAddr   string
		headers      map[string]string
		esperado     string
	}{
		{nome: "remote addr ipv4", remoteAddr: "200.1.2.3:5555", esperado: "200.1.2.3"},
		{nome: "remote addr ipv6", remoteAddr: "[2800:150::1]:443", esperado: "2800:150::1"},
		{nome: "remote addr sem porta", remoteAddr: "200.1.2.3", esperado: "200.1.2.3"},
		{nome: "remote addr vazio", remoteAddr: "", esperado: domain.IPDesconhecido},
		{
			nome:       "ignora forwarded sem proxy confiavel",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "1.1.1.1"},
			esperado:   "10.0.0.1",
		},
		{
			nome:         "primeiro da cadeia forwarded",
			confiarProxy: true,
			remoteAddr:   "10.0.0.1:1234",
			headers:      map[string]string{"X-Forwarded-For": " 181.1.1.1 , 10.0.0.2"},
			esperado:     "181.1.1.1",
		},
		{
			nome:         "x-real-ip quando nao ha forwarded",
			confiarProxy: true,
			remoteAddr:   "10.0.0.1:1234",
			headers:      map[string]string{"X-Real-IP": "181.2.2.2"},
			esperado:     "181.2.2.2",
		},
		{
			nome:         "proxy confiavel sem cabecalhos",
			confiarProxy: true,
			remoteAddr:   "10.0.0.1:1234",
			esperado:     "10.0.0.1",
		},
	}

	for _, tc := range casos {
		t.Run(tc.nome, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/verificar-voto", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tc.esperado, NewEnderecoRede(tc.confiarProxy).Identidade(req))
		})
	}
}
