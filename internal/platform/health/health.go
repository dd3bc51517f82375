// Pacote health expõe o readiness da API: cada dependência configurada vira uma verificação.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

const timeoutPadrao = 2 * time.Second

// Verificacao é uma dependência checada a cada chamada de /readyz, na ordem de registro.
type Verificacao struct {
	Nome  string
	Check func(ctx context.Context) error
}

type Checker struct {
	verificacoes []Verificacao
	timeout      time.Duration
}

func NewChecker(verificacoes ...Verificacao) *Checker {
	return &Checker{verificacoes: verificacoes, timeout: timeoutPadrao}
}

func BancoDeDados(db *sql.DB) Verificacao {
	return Verificacao{Nome: "database", Check: db.PingContext}
}

func Redis(client *redis.Client) Verificacao {
	return Verificacao{Nome: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// Arquivo confere se o diretório do arquivo de votos existe; o arquivo em si pode não existir ainda.
func Arquivo(path string) Verificacao {
	return Verificacao{Nome: "storage", Check: func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(filepath.Dir(path))
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("%s nao e diretorio", filepath.Dir(path))
		}
		return nil
	}}
}

func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		defer cancel()

		for _, v := range c.verificacoes {
			if err := v.Check(ctx); err != nil {
				http.Error(w, v.Nome+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
