package voting

import (
	"strings"

	"github.com/marcelojr/votos-addon/internal/domain"
)

// Regra associa trechos do user agent a um rótulo; basta um trecho casar.
type Regra struct {
	Trechos []string
	Rotulo  string
}

// A ordem é a prioridade: a primeira regra que casa vence. User agents do Edge e do
// Opera também contêm "Chrome", então caem em "Google Chrome", como sempre caíram.
var RegrasNavegador = []Regra{
	{Trechos: []string{"Chrome"}, Rotulo: "Google Chrome"},
	{Trechos: []string{"Safari"}, Rotulo: "Safari"},
	{Trechos: []string{"Firefox"}, Rotulo: "Firefox"},
	{Trechos: []string{"Edge"}, Rotulo: "Microsoft Edge"},
	{Trechos: []string{"Opera"}, Rotulo: "Opera"},
}

var RegrasSistema = []Regra{
	{Trechos: []string{"Windows"}, Rotulo: "Windows"},
	{Trechos: []string{"Mac"}, Rotulo: "macOS"},
	{Trechos: []string{"Linux"}, Rotulo: "Linux"},
	{Trechos: []string{"Android"}, Rotulo: "Android"},
	{Trechos: []string{"iPhone", "iPad"}, Rotulo: "iOS"},
}

// Classificar devolve o rótulo da primeira regra que casa ou domain.Desconocido.
func Classificar(userAgent string, regras []Regra) string {
	for _, r := range regras {
		for _, trecho := range r.Trechos {
			if strings.Contains(userAgent, trecho) {
				return r.Rotulo
			}
		}
	}
	return domain.Desconocido
}
