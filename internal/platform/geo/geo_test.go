package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelojr/votos-addon/internal/domain"
	redisstorage "github.com/marcelojr/votos-addon/internal/platform/storage/redis"
)

func TestIPAPI_Localizar_QuandoRespostaValida_DeveRetornarPaisECidade(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ip":"8.8.8.8","country_name":"United States","city":"Mountain View"}`))
	}))
	defer srv.Close()

	loc, err := NewIPAPI(srv.URL, time.Second).Localizar(context.Background(), "8.8.8.8")

	require.NoError(t, err)
	assert.Equal(t, domain.Localizacao{Pais: "United States", Cidade: "Mountain View"}, loc)
	assert.Equal(t, "/8.8.8.8/json/", path.Load())
}

func TestIPAPI_Localizar_QuandoFalhaExterna_DeveRetornarGeolocalizacaoIndisponivel(t *testing.T) {
	casos := map[string]http.HandlerFunc{
		"status 429": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
		"erro no corpo": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":true,"reason":"RateLimited"}`))
		},
		"json quebrado": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}

	for nome, handler := range casos {
		t.Run(nome, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			_, err := NewIPAPI(srv.URL, time.Second).Localizar(context.Background(), "8.8.4.4")

			assert.ErrorIs(t, err, domain.ErrGeolocalizacaoIndisponivel)
		})
	}
}

func TestIPAPI_Localizar_QuandoServicoLento_DeveRespeitarTimeout(t *testing.T) {
	liberar := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-liberar:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(liberar)

	inicio := time.Now()
	_, err := NewIPAPI(srv.URL, 50*time.Millisecond).Localizar(context.Background(), "1.1.1.1")

	assert.ErrorIs(t, err, domain.ErrGeolocalizacaoIndisponivel)
	assert.Less(t, time.Since(inicio), 2*time.Second)
}

func TestIPAPI_Localizar_QuandoIPPrivado_NaoDeveConsultarAPI(t *testing.T) {
	var chamadas int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&chamadas, 1)
	}))
	defer srv.Close()

	api := NewIPAPI(srv.URL, time.Second)
	for _, ip := range []string{"127.0.0.1", "::1", "192.168.0.10", "10.1.2.3", domain.IPDesconhecido, ""} {
		_, err := api.Localizar(context.Background(), ip)
		assert.ErrorIs(t, err, domain.ErrGeolocalizacaoIndisponivel, ip)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&chamadas))
}

func TestPublico(t *testing.T) {
	assert.True(t, Publico("200.27.1.1"))
	assert.True(t, Publico("2800:150::1"))
	assert.False(t, Publico("172.16.5.4"))
	assert.False(t, Publico("fe80::1"))
	assert.False(t, Publico("nao-e-ip"))
}

func TestNoop_Localizar_DeveSempreFalhar(t *testing.T) {
	_, err := Noop{}.Localizar(context.Background(), "8.8.8.8")
	assert.True(t, errors.Is(err, domain.ErrGeolocalizacaoIndisponivel))
}

type contadorGeo struct {
	chamadas int
	loc      domain.Localizacao
	err      error
}

func (c *contadorGeo) Localizar(context.Context, string) (domain.Localizacao, error) {
	c.chamadas++
	return c.loc, c.err
}

func novoCache(t *testing.T, next domain.Geolocalizador) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(next, redisstorage.NewGeoCache(client, "geo", time.Hour), nil), mr
}

func TestCache_Localizar_QuandoRepetido_DeveConsultarUmaVez(t *testing.T) {
	next := &contadorGeo{loc: domain.Localizacao{Pais: "Argentina", Cidade: "Córdoba"}}
	cache, _ := novoCache(t, next)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		loc, err := cache.Localizar(ctx, "181.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, "Córdoba", loc.Cidade)
	}

	assert.Equal(t, 1, next.chamadas)
}

func TestCache_Localizar_QuandoConsultaFalha_NaoDeveGuardar(t *testing.T) {
	next := &contadorGeo{err: domain.ErrGeolocalizacaoIndisponivel}
	cache, mr := novoCache(t, next)

	_, err := cache.Localizar(context.Background(), "181.0.0.2")

	assert.ErrorIs(t, err, domain.ErrGeolocalizacaoIndisponivel)
	assert.False(t, mr.Exists("geo:181.0.0.2"))
}

func TestCache_Localizar_QuandoRedisFora_DeveConsultarDireto(t *testing.T) {
	next := &contadorGeo{loc: domain.Localizacao{Pais: "Chile", Cidade: "Temuco"}}
	cache, mr := novoCache(t, next)
	mr.Close()

	loc, err := cache.Localizar(context.Background(), "181.0.0.3")

	require.NoError(t, err)
	assert.Equal(t, "Temuco", loc.Cidade)
	assert.Equal(t, 1, next.chamadas)
}
