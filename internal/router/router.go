package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	_ "dental-clinic/docs"
	"dental-clinic/internal/adapters/blobcache"
	mem "dental-clinic/internal/adapters/storage/memory"
	pg "dental-clinic/internal/adapters/storage/postgres"
	"dental-clinic/internal/adapters/storage/sqlite"
	"dental-clinic/internal/domain/appointments"
	"dental-clinic/internal/domain/budgets"
	"dental-clinic/internal/domain/documents"
	"dental-clinic/internal/domain/invoices"
	"dental-clinic/internal/domain/notifications"
	"dental-clinic/internal/domain/patients"
	"dental-clinic/internal/domain/periodontal"
	"dental-clinic/internal/domain/profile"
	"dental-clinic/internal/domain/session"
	"dental-clinic/internal/eventbus"
	"dental-clinic/internal/middleware"
	"dental-clinic/internal/platform/config"
	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/platform/metrics"
	"dental-clinic/internal/recordstore"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	Config  config.Config
	Logger  logger.Logger    // nil = descartar logs
	Metrics *metrics.Metrics // nil = registry nuevo

	// Opcional: si viene, se usa tal cual. Si no, in-memory.
	Store recordstore.Store

	// Opcional: reloj para "hoy" (sala de espera, agenda).
	Now func() time.Time

	// Opcional: al cancelarse detiene el sondeo del store compartido.
	Context context.Context
}

// OpenStore abre el backend elegido por STORE_DRIVER. El closer libera la
// conexión (no-op en memoria).
func OpenStore(cfg config.Config) (recordstore.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreDriver {
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.Close, nil
	case config.DriverPostgres:
		db, err := pg.Open(cfg.DBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return pg.NewStore(db), db.Close, nil
	default:
		return mem.NewStore(), noop, nil
	}
}

func NewRouter(opts Options) (http.Handler, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	cfg := opts.Config

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientContext)
	r.Use(middleware.RequestLog(log))
	r.Use(middleware.Recover(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	bus := eventbus.New(log, m)

	base := opts.Store
	if base == nil {
		base = mem.NewStore()
	}
	// Todas las escrituras pasan por aquí: StoreChanged + métricas.
	store := recordstore.NewNotifying(base, bus, m)
	onMalformed := recordstore.LogMalformed(log, m)

	var seed []patients.Patient
	if cfg.SeedPatients {
		seed = patients.SeedPatients()
	}

	// Services por módulo
	dir := patients.NewDirectory(patients.NewStoreRepository(store, onMalformed), bus, log, seed)
	ledger := invoices.NewLedger(store, onMalformed, log)
	sched := appointments.NewScheduler(appointments.Options{
		Store:       store,
		OnMalformed: onMalformed,
		Patients:    dir,
		Invoices:    ledger,
		Bus:         bus,
		Logger:      log,
		Now:         opts.Now,
	})
	budgetsSvc := budgets.NewService(budgets.Options{
		Store:       store,
		OnMalformed: onMalformed,
		Patients:    dir,
		Bus:         bus,
		Logger:      log,
	})
	docsSvc := documents.NewService(documents.Options{
		Store:       store,
		OnMalformed: onMalformed,
		Blobs:       blobcache.New(cfg.DocumentTTL),
		Patients:    dir,
		Bus:         bus,
		Logger:      log,
		MaxBytes:    cfg.MaxDocumentBytes,
	})
	perioSvc := periodontal.NewService(dir, log)
	profileSvc := profile.NewService(profile.Options{
		Store:         store,
		OnMalformed:   onMalformed,
		Bus:           bus,
		Logger:        log,
		MaxImageBytes: cfg.MaxImageBytes,
	})
	sessionSvc := session.NewService(store, onMalformed, log)
	feed := notifications.NewFeed(cfg.NotificationTTL)

	// Suscripciones al bus
	ctx := context.Background()
	starters := []func() error{
		func() error { return feed.Start(bus) },
		func() error { return dir.Start(ctx) },
		func() error { return sched.Start(ctx) },
		func() error { return budgetsSvc.Start(ctx) },
		func() error { return docsSvc.Start(ctx) },
		func() error { return profileSvc.Start(ctx) },
	}
	for _, start := range starters {
		if err := start(); err != nil {
			return nil, err
		}
	}

	// Listas de pacientes que ya no existen (borrado interrumpido).
	for _, sweep := range []func(context.Context) (int, error){budgetsSvc.DropOrphans, docsSvc.DropOrphans} {
		if _, err := sweep(ctx); err != nil {
			log.Warn("orphan sweep failed", map[string]any{"error": err})
		}
	}

	// Cambios de otros procesos sobre el mismo store
	if _, err := store.Poll(ctx); err != nil {
		return nil, fmt.Errorf("prime store watch: %w", err)
	}
	if cfg.SharedStore() && cfg.StorePollInterval > 0 {
		watchCtx := opts.Context
		if watchCtx == nil {
			watchCtx = context.Background()
		}
		go store.Watch(watchCtx, cfg.StorePollInterval, log)
	}

	// Rutas por módulo
	patients.RegisterRoutes(r, dir)
	appointments.RegisterRoutes(r, sched)
	invoices.RegisterRoutes(r, ledger)
	budgets.RegisterRoutes(r, budgetsSvc)
	documents.RegisterRoutes(r, docsSvc)
	periodontal.RegisterRoutes(r, perioSvc)
	profile.RegisterRoutes(r, profileSvc)
	session.RegisterRoutes(r, sessionSvc)
	notifications.RegisterRoutes(r, feed)

	log.Info("router ready", map[string]any{
		"patients": len(dir.List(ctx)),
		"seed":     cfg.SeedPatients,
	})
	return r, nil
}
