// Executável principal da API: carrega a configuração, inicializa dependências e sobe o servidor HTTP.
package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"

	"github.com/marcelojr/votos-addon/internal/app/httpapi"
	"github.com/marcelojr/votos-addon/internal/app/voting"
	"github.com/marcelojr/votos-addon/internal/domain"
	"github.com/marcelojr/votos-addon/internal/platform/antifraude"
	"github.com/marcelojr/votos-addon/internal/platform/clock"
	"github.com/marcelojr/votos-addon/internal/platform/config"
	"github.com/marcelojr/votos-addon/internal/platform/geo"
	"github.com/marcelojr/votos-addon/internal/platform/health"
	"github.com/marcelojr/votos-addon/internal/platform/identidade"
	"github.com/marcelojr/votos-addon/internal/platform/logger"
	"github.com/marcelojr/votos-addon/internal/platform/migrations"
	"github.com/marcelojr/votos-addon/internal/platform/storage/arquivo"
	postgresstorage "github.com/marcelojr/votos-addon/internal/platform/storage/postgres"
	redisstorage "github.com/marcelojr/votos-addon/internal/platform/storage/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("configuracao invalida", "err", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	loc, err := clock.Local(cfg.FusoHorario)
	if err != nil {
		logger.Warn("fuso horario invalido, usando UTC", "fuso", cfg.FusoHorario, "err", err)
	}
	clockSystem := clock.NewSystemClock()

	var verificacoes []health.Verificacao
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	store, descricaoStore := abrirStore(ctx, cfg, clockSystem, loc, &verificacoes, &closers)

	// Redis é opcional: só antifraude e cache de geolocalização dependem dele.
	var redisClient *goredis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = redisstorage.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Fatal("falha ao conectar no redis", "err", err)
		}
		closers = append(closers, redisClient)
		verificacoes = append(verificacoes, health.Redis(redisClient))
	}

	var geolocalizador domain.Geolocalizador = geo.Noop{}
	if cfg.GeoEnabled {
		geolocalizador = geo.NewIPAPI(cfg.GeoBaseURL, cfg.GeoTimeout)
		if redisClient != nil && cfg.GeoCacheTTL > 0 {
			cache := redisstorage.NewGeoCache(redisClient, cfg.GeoCachePrefix, cfg.GeoCacheTTL)
			geolocalizador = geo.NewCache(geolocalizador, cache, logger.L())
		}
	}

	var antifraudeSvc domain.Antifraude = antifraude.NewNoop()
	if cfg.RateLimitEnabled {
		antifraudeSvc = antifraude.NewRedisRateLimiter(redisClient, cfg.RateLimitMaxActions, cfg.RateLimitWindow(), cfg.RateLimitKeyPrefix)
	}

	servico := voting.NewService(store, geolocalizador, antifraudeSvc, cfg.GeoTimeout, logger.L())

	api := httpapi.New(servico, identidade.NewEnderecoRede(cfg.TrustProxy), cfg.ConsultaToken, logger.L())
	routerCfg := httpapi.RouterConfig{
		CORSOrigins: cfg.CORSOrigins,
		StaticDir:   cfg.StaticDir,
		Ready:       health.NewChecker(verificacoes...).ReadyHandler(),
		Logger:      logger.L(),
	}
	// Sem endereço dedicado, /metrics fica no mesmo servidor da API.
	if cfg.MetricsAddress == "" {
		routerCfg.Metrics = promhttp.Handler()
	}

	servidores := map[string]*http.Server{
		cfg.HTTPAddress: httpapi.NewServer(httpapi.NewRouter(api, routerCfg)),
	}
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		servidores[cfg.MetricsAddress] = httpapi.NewServer(mux)
	}

	logger.Info("votos addon iniciado",
		"addon", cfg.AddonNombre,
		"ambiente", cfg.Environment,
		"addr", cfg.HTTPAddress,
		"metrics_addr", cfg.MetricsAddress,
		"store", descricaoStore,
		"fuso", loc.String(),
		"geo", cfg.GeoEnabled,
		"rate_limit", cfg.RateLimitEnabled,
		"detalles_protegido", cfg.ConsultaToken != "",
	)

	var wg conc.WaitGroup
	for addr, srv := range servidores {
		addr, srv := addr, srv
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Fatal("falha ao abrir porta", "addr", addr, "err", err)
		}
		wg.Go(func() {
			if err := httpapi.Servir(ctx, srv, listener); err != nil {
				logger.Error("erro no servidor", "addr", addr, "err", err)
				stop()
			}
		})
	}
	wg.Wait()

	logger.Info("api encerrada")
}

// abrirStore escolhe a implementação do VoteStore pelo STORE_DRIVER.
func abrirStore(
	ctx context.Context,
	cfg config.Config,
	clockSystem domain.Clock,
	loc *time.Location,
	verificacoes *[]health.Verificacao,
	closers *[]io.Closer,
) (domain.VoteStore, string) {
	if cfg.StoreDriver == config.StorePostgres {
		db, err := postgresstorage.Open(ctx, cfg.PostgresDSN())
		if err != nil {
			logger.Fatal("falha ao conectar no postgres", "err", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			logger.Fatal("falha ao resgatar sql.DB", "err", err)
		}
		*closers = append(*closers, sqlDB)
		*verificacoes = append(*verificacoes, health.BancoDeDados(sqlDB))

		if cfg.AutoMigrate {
			if err := migrations.Run(db); err != nil {
				logger.Fatal("falha na migracao automatica", "err", err)
			}
		}
		return postgresstorage.NewVotoStore(db, cfg.AddonNombre, clockSystem, loc), "postgres://" + cfg.PostgresHost + "/" + cfg.PostgresDB
	}

	store, err := arquivo.Open(cfg.VotosArquivo, cfg.AddonNombre, clockSystem, loc)
	if err != nil {
		logger.Fatal("falha ao abrir arquivo de votos", "path", cfg.VotosArquivo, "err", err)
	}
	*verificacoes = append(*verificacoes, health.Arquivo(store.Path()))
	return store, store.Path()
}
