package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qubic/batch-transfer-engine/api"
	"github.com/qubic/batch-transfer-engine/business/domain/audit"
	"github.com/qubic/batch-transfer-engine/business/domain/engine"
	"github.com/qubic/batch-transfer-engine/entities"
	"github.com/qubic/batch-transfer-engine/external/elastic"
	"github.com/qubic/batch-transfer-engine/external/kafka"
	"github.com/qubic/batch-transfer-engine/external/ledger"
	"github.com/qubic/batch-transfer-engine/infrastructure/store/pebbledb"
	"github.com/qubic/batch-transfer-engine/metrics"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "QUBIC_TRANSFER_ENGINE"

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	config := zap.NewProductionConfig()
	// this is just for sugar, to display a readable date instead of an epoch time
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %v", err)
	}
	defer logger.Sync()
	sLogger := logger.Sugar()

	var cfg struct {
		Ledger struct {
			ServiceUrl      string        `conf:"default:http://127.0.0.1:8010"`
			RequestTimeout  time.Duration `conf:"default:15s"`
			TransferTimeout time.Duration `conf:"default:30s"`
		}
		Broker struct {
			BootstrapServers []string `conf:"default:localhost:9092"`
			ProduceTopic     string   `conf:"default:qubic-batch-transfers"`
		}
		Elastic struct {
			Address     string        `conf:"default:http://localhost:9200"`
			Index       string        `conf:"default:qubic-batch-records"`
			ReadTimeout time.Duration `conf:"default:20s"`
			Enabled     bool          `conf:"default:false"`
		}
		Engine struct {
			InternalStoreFolder string        `conf:"default:store"`
			InitialOwner        string        `conf:"optional"` // required on first start only
			RecordCacheTtl      time.Duration `conf:"default:1m"`
			ServerPort          int           `conf:"default:8000"`
			MetricsPort         int           `conf:"default:9999"`
			MetricsNamespace    string        `conf:"default:qubic_transfer_engine"`
		}
		Publish struct {
			Enabled      bool          `conf:"default:true"`
			BatchSize    int           `conf:"default:100"`
			Interval     time.Duration `conf:"default:1s"`
			WriteTimeout time.Duration `conf:"default:1m"`
		}
	}

	if err := conf.Parse(os.Args[1:], envPrefix, &cfg); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(envPrefix, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config usage")
			}
			fmt.Println(usage)
			return nil
		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(envPrefix, &cfg)
			if err != nil {
				return errors.Wrap(err, "generating config version")
			}
			fmt.Println(version)
			return nil
		}
		return errors.Wrap(err, "parsing config")
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return errors.Wrap(err, "generating config for output")
	}
	log.Printf("main: Config :\n%v\n", out)

	store, err := pebbledb.NewEngineStore(cfg.Engine.InternalStoreFolder)
	if err != nil {
		return errors.Wrap(err, "creating engine store")
	}
	defer store.Close()

	// the owner survives restarts, the config value only seeds the first start
	_, err = store.GetOwner()
	if errors.Is(err, entities.ErrStoreEntityNotFound) {
		if cfg.Engine.InitialOwner == "" {
			return errors.New("no owner stored and no initial owner configured")
		}
		log.Printf("main: Bootstrapping owner [%s]", cfg.Engine.InitialOwner)
		if err := store.SetOwner(cfg.Engine.InitialOwner); err != nil {
			return errors.Wrap(err, "bootstrapping owner")
		}
	} else if err != nil {
		return errors.Wrap(err, "getting owner")
	}

	m := kprom.NewMetrics(cfg.Engine.MetricsNamespace,
		kprom.Registerer(prometheus.DefaultRegisterer),
		kprom.Gatherer(prometheus.DefaultGatherer))
	kcl, err := kgo.NewClient(
		kgo.WithHooks(m),
		kgo.SeedBrokers(cfg.Broker.BootstrapServers...),
		kgo.DefaultProduceTopic(cfg.Broker.ProduceTopic),
		kgo.ProducerBatchCompression(kgo.ZstdCompression()),
	)
	if err != nil {
		return errors.Wrap(err, "creating kafka client")
	}
	defer kcl.Close()

	sinks := []audit.RecordPublisher{kafka.NewClient(kcl)}
	if cfg.Elastic.Enabled {
		esClient, err := elastic.NewClient(cfg.Elastic.Address, cfg.Elastic.Index, cfg.Elastic.ReadTimeout)
		if err != nil {
			return errors.Wrap(err, "creating elasticsearch client")
		}
		sinks = append(sinks, esClient)
	}

	ledgerClient := ledger.NewClient(cfg.Ledger.ServiceUrl, cfg.Ledger.RequestTimeout)
	engineMetrics := metrics.NewEngineMetrics(cfg.Engine.MetricsNamespace)
	applier := engine.NewTransferApplier(ledgerClient, cfg.Ledger.TransferTimeout, sLogger)
	batchEngine := engine.NewEngine(store, ledgerClient, applier, engineMetrics, sLogger)

	publishErr := make(chan error, 1)
	if cfg.Publish.Enabled {
		publisher := audit.NewPublisher(store, sinks, cfg.Publish.WriteTimeout,
			cfg.Publish.BatchSize, cfg.Publish.Interval, engineMetrics, sLogger)
		go func() { publishErr <- publisher.Start() }()
	} else {
		log.Println("[WARN] main: Audit record publishing disabled")
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	recordCache := ttlcache.New[uint64, *entities.BatchRecord](
		ttlcache.WithTTL[uint64, *entities.BatchRecord](cfg.Engine.RecordCacheTtl),
	)
	go recordCache.Start()

	apiError := make(chan error, 1)
	go func() {
		mux := http.NewServeMux()
		handler := api.NewHandler(batchEngine, recordCache)
		handler.RegisterRoutes(mux)
		log.Printf("main: Starting server on port [%d].", cfg.Engine.ServerPort)
		apiError <- http.ListenAndServe(fmt.Sprintf(":%d", cfg.Engine.ServerPort), mux)
	}()

	metricsError := make(chan error, 1)
	go func() {
		log.Printf("main: Starting metrics server on port [%d].", cfg.Engine.MetricsPort)
		http.Handle("/metrics", promhttp.Handler())
		metricsError <- http.ListenAndServe(fmt.Sprintf(":%d", cfg.Engine.MetricsPort), nil)
	}()

	log.Println("main: Service started.")

	for {
		select {
		case <-shutdown:
			log.Println("main: Received shutdown signal, shutting down...")
			return nil
		case err := <-publishErr:
			return fmt.Errorf("publishing error: %v", err)
		case err := <-apiError:
			return fmt.Errorf("server error: %v", err)
		case err := <-metricsError:
			return fmt.Errorf("metrics server error: %v", err)
		}
	}
}
