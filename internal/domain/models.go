package domain

import (
	"math"
	"strings"
	"time"
)

// Escolha é uma das três respostas aceitas pela enquete.
type Escolha string

const (
	EscolhaSi    Escolha = "si"
	EscolhaNo    Escolha = "no"
	EscolhaQuiza Escolha = "quiza"
)

// Rótulos usados quando não conseguimos derivar algum metadado do cliente.
// Mantêm os mesmos valores já gravados em basedatos_votos.json.
const (
	Desconocido    = "Desconocido"
	NoDisponible   = "No disponible"
	IPDesconhecido = "Desconocida"
)

// Escolhas lista as opções na ordem em que aparecem nas respostas.
var Escolhas = []Escolha{EscolhaSi, EscolhaNo, EscolhaQuiza}

// ParseEscolha devolve a escolha correspondente ou false quando o valor não é reconhecido.
func ParseEscolha(raw string) (Escolha, bool) {
	switch e := Escolha(strings.TrimSpace(raw)); e {
	case EscolhaSi, EscolhaNo, EscolhaQuiza:
		return e, true
	default:
		return "", false
	}
}

// Metadados agrupa o que sabemos sobre o cliente no momento do voto.
type Metadados struct {
	IP        string
	Navegador string
	Sistema   string
	Pais      string
	Cidade    string
	UserAgent string
}

// RegistroVoto é imutável depois de gravado; ID segue a ordem de inserção a partir de 1.
type RegistroVoto struct {
	ID        int     `json:"id" yaml:"id"`
	Voto      Escolha `json:"voto" yaml:"voto"`
	Fecha     string  `json:"fecha" yaml:"fecha"`
	Timestamp int64   `json:"timestamp" yaml:"timestamp"`
	Navegador string  `json:"navegador" yaml:"navegador"`
	Sistema   string  `json:"sistemaOperativo" yaml:"sistemaOperativo"`
	IP        string  `json:"ip" yaml:"ip"`
	Pais      string  `json:"pais" yaml:"pais"`
	Ciudad    string  `json:"ciudad" yaml:"ciudad"`
}

// Contagem guarda os votos por escolha, no formato persistido.
type Contagem struct {
	Si    int `json:"si" yaml:"si"`
	No    int `json:"no" yaml:"no"`
	Quiza int `json:"quiza" yaml:"quiza"`
}

func (c *Contagem) Incrementar(e Escolha) {
	switch e {
	case EscolhaSi:
		c.Si++
	case EscolhaNo:
		c.No++
	case EscolhaQuiza:
		c.Quiza++
	}
}

func (c Contagem) Soma() int {
	return c.Si + c.No + c.Quiza
}

// Apuracao é o agregado mutável: total e contagem por escolha.
type Apuracao struct {
	Total int
	Contagem
}

// Porcentagens são sempre derivadas da apuração, nunca persistidas.
type Porcentagens struct {
	Si    float64 `json:"si"`
	No    float64 `json:"no"`
	Quiza float64 `json:"quiza"`
}

func (a Apuracao) Porcentagens() Porcentagens {
	return Porcentagens{
		Si:    Percentual(a.Si, a.Total),
		No:    Percentual(a.No, a.Total),
		Quiza: Percentual(a.Quiza, a.Total),
	}
}

// Percentual calcula count/total*100 com uma casa decimal; total zero resulta em 0.
func Percentual(count, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)*1000/float64(total)) / 10
}

// Conjunto é a raiz persistida: rótulo do addon, apuração e registros em ordem de chegada.
type Conjunto struct {
	AddonNombre string         `json:"addonNombre" yaml:"addonNombre"`
	TotalVotos  int            `json:"totalVotos" yaml:"totalVotos"`
	Votos       Contagem       `json:"votos" yaml:"votos"`
	Detalles    []RegistroVoto `json:"detallesVotos" yaml:"detallesVotos"`
}

// NovoConjunto cria o conjunto vazio usado quando ainda não existe estado persistido.
func NovoConjunto(addon string) Conjunto {
	return Conjunto{
		AddonNombre: addon,
		Detalles:    []RegistroVoto{},
	}
}

func (c Conjunto) Apuracao() Apuracao {
	return Apuracao{Total: c.TotalVotos, Contagem: c.Votos}
}

// Copia devolve um snapshot independente para leitores fora do lock.
func (c Conjunto) Copia() Conjunto {
	detalhes := make([]RegistroVoto, len(c.Detalles))
	copy(detalhes, c.Detalles)
	c.Detalles = detalhes
	return c
}

func (c Conjunto) JaVotou(identidade string) bool {
	for _, r := range c.Detalles {
		if r.IP == identidade {
			return true
		}
	}
	return false
}

// LayoutFecha é o formato es-CL já gravado em basedatos_votos.json.
const LayoutFecha = "02-01-2006, 15:04:05"

// NovoRegistro monta o registro imutável de um voto aceito.
func NovoRegistro(id int, escolha Escolha, meta Metadados, agora time.Time, loc *time.Location) RegistroVoto {
	if loc == nil {
		loc = time.UTC
	}
	return RegistroVoto{
		ID:        id,
		Voto:      escolha,
		Fecha:     agora.In(loc).Format(LayoutFecha),
		Timestamp: agora.UnixMilli(),
		Navegador: valorOuPadrao(meta.Navegador, Desconocido),
		Sistema:   valorOuPadrao(meta.Sistema, Desconocido),
		IP:        valorOuPadrao(meta.IP, IPDesconhecido),
		Pais:      valorOuPadrao(meta.Pais, NoDisponible),
		Ciudad:    valorOuPadrao(meta.Cidade, NoDisponible),
	}
}

func valorOuPadrao(v, padrao string) string {
	if strings.TrimSpace(v) == "" {
		return padrao
	}
	return v
}

// Resultado é devolvido a quem teve o voto aceito.
type Resultado struct {
	Mensagem     string
	Apuracao     Apuracao
	Porcentagens Porcentagens
}

type Estatisticas struct {
	Addon        string
	Apuracao     Apuracao
	Porcentagens Porcentagens
}

// Dimensao é o campo de metadados usado para agrupar registros.
type Dimensao string

const (
	DimensaoPais      Dimensao = "pais"
	DimensaoNavegador Dimensao = "navegador"
)

// Grupo conta os votos de um valor da dimensão.
type Grupo struct {
	Si    int `json:"si"`
	No    int `json:"no"`
	Quiza int `json:"quiza"`
	Total int `json:"total"`
}

type Agrupamento struct {
	Addon  string
	Grupos map[string]Grupo
}

type Detalhes struct {
	Addon     string
	Apuracao  Apuracao
	Registros []RegistroVoto
}
