// Pacote ids gera os identificadores de requisição usados nos logs e no header X-Request-ID.
package ids

import (
	"github.com/oklog/ulid/v2"
)

// NewULID é seguro para uso concorrente e monotônico dentro do mesmo milissegundo.
func NewULID() string {
	return ulid.Make().String()
}

// Valido informa se s é um ULID bem formado.
func Valido(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
