// Command narrator is the single-binary entry point running every core
// pipeline worker: the action pipeline, dice roller, renderer, NPC movement
// controller, and their supporting bus/world/health infrastructure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/duskward/narrator/internal/action"
	"github.com/duskward/narrator/internal/bus"
	"github.com/duskward/narrator/internal/config"
	"github.com/duskward/narrator/internal/effects"
	"github.com/duskward/narrator/internal/health"
	"github.com/duskward/narrator/internal/npcmove"
	"github.com/duskward/narrator/internal/observe"
	"github.com/duskward/narrator/internal/place"
	"github.com/duskward/narrator/internal/refs"
	"github.com/duskward/narrator/internal/renderer"
	"github.com/duskward/narrator/internal/resilience"
	"github.com/duskward/narrator/internal/roller"
	"github.com/duskward/narrator/internal/tags"
	"github.com/duskward/narrator/internal/wire"
	"github.com/duskward/narrator/internal/world"
	"github.com/duskward/narrator/pkg/provider/llm"
	"github.com/duskward/narrator/pkg/provider/llm/anyllm"
	"github.com/duskward/narrator/pkg/provider/llm/mock"
	"github.com/duskward/narrator/pkg/provider/llm/openai"
	"github.com/duskward/narrator/pkg/types"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "narrator: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "narrator: %v\n", err)
		}
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.AIChanged || d.NPCMoveChanged || d.TurnChanged || d.QueuesChanged {
			slog.Warn("config change requires a restart to take effect",
				"ai_changed", d.AIChanged,
				"npc_movement_changed", d.NPCMoveChanged,
				"turn_changed", d.TurnChanged,
				"queues_changed", d.QueuesChanged,
			)
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	slog.Info("narrator starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"data_slot", cfg.DataSlot,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "narrator",
		ServiceVersion: "dev",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to build metrics", "err", err)
		return 1
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	provider, err := buildProvider(cfg, reg)
	if err != nil {
		slog.Error("failed to build AI provider", "err", err)
		return 1
	}

	deps, err := wireApplication(ctx, cfg, provider)
	if err != nil {
		slog.Error("failed to wire application", "err", err)
		return 1
	}

	mux := http.NewServeMux()
	deps.health.Register(mux)
	mux.Handle("/metrics", deps.metricsHandler)
	mux.Handle("/npc-feed", deps.hub.Handler(ctx))

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: observe.Middleware(metrics)(mux),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error { return pollLoop(gctx, "action", deps.actionWorker, deps.sessionID, 200*time.Millisecond) })
	g.Go(func() error { return pollLoop(gctx, "roller", deps.rollerWorker, deps.sessionID, 200*time.Millisecond) })
	g.Go(func() error { return pollLoop(gctx, "renderer", deps.rendererWorker, deps.sessionID, 500*time.Millisecond) })

	g.Go(func() error {
		deps.npcController.Run(gctx, deps.npcTickRate)
		return gctx.Err()
	})

	g.Go(func() error { return recoverySweep(gctx, deps.outbox, deps.staleThreshold) })

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	slog.Info("narrator ready")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// tickWorker is the shape shared by every bus-claiming driver loop (action,
// roller, renderer): claim one envelope per call, or report nothing to do.
type tickWorker interface {
	Tick(ctx context.Context, sessionID string) (string, bool, error)
}

// pollLoop drives w.Tick at idle intervals until ctx is cancelled, sleeping
// idle between empty ticks and after a failed one.
func pollLoop(ctx context.Context, name string, w tickWorker, sessionID string, idle time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, ok, err := w.Tick(ctx, sessionID)
		if err != nil {
			slog.Error("worker tick failed", "worker", name, "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idle):
			}
			continue
		}
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idle):
			}
		}
	}
}

// recoverySweep periodically promotes stale `processing` envelopes back to
// `sent`, per §7's worker-crash recovery contract.
func recoverySweep(ctx context.Context, outbox *bus.Outbox, threshold time.Duration) error {
	ticker := time.NewTicker(threshold)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := outbox.RecoverStale(threshold)
			if err != nil {
				slog.Error("recovery sweep failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Warn("recovered stale envelopes", "count", n)
			}
		}
	}
}

// ── Provider wiring ──────────────────────────────────────────────────────────

func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("mock", func(cfg config.AIConfig) (llm.Provider, error) {
		return &mock.Provider{CompleteResponse: nil}, nil
	})
	reg.RegisterLLM("openai", func(cfg config.AIConfig) (llm.Provider, error) {
		return openai.New(cfg.APIKey, cfg.RendererModel)
	})
	reg.RegisterLLM("anyllm", func(cfg config.AIConfig) (llm.Provider, error) {
		if cfg.OllamaHost != "" {
			return anyllm.NewOllama(cfg.RendererModel)
		}
		return anyllm.New("openai", cfg.RendererModel)
	})
}

// buildProvider instantiates the configured AI backend and wraps it in a
// circuit-breaking fallback so a single provider outage degrades to the
// canned fallback narration instead of stalling the renderer worker.
func buildProvider(cfg *config.Config, reg *config.Registry) (llm.Provider, error) {
	primary, err := reg.CreateLLM(cfg.AI)
	if errors.Is(err, config.ErrProviderNotRegistered) {
		slog.Warn("ai provider not registered; falling back to mock", "provider", cfg.AI.Provider)
		primary = &mock.Provider{}
	} else if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.AI.Provider, err)
	}

	return resilience.NewLLMFallback(primary, cfg.AI.Provider, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Name:        cfg.AI.Provider,
			MaxFailures: 5,
			ResetTimeout: 30 * time.Second,
		},
	}), nil
}

// ── Application wiring ───────────────────────────────────────────────────────

type application struct {
	sessionID      string
	outbox         *bus.Outbox
	staleThreshold time.Duration

	actionWorker   *action.Worker
	rollerWorker   *roller.Worker
	rendererWorker *renderer.Worker

	npcController *npcmove.Controller
	npcTickRate   time.Duration

	hub            *wire.Hub
	health         *health.Handler
	metricsHandler http.Handler
}

func wireApplication(ctx context.Context, cfg *config.Config, provider llm.Provider) (*application, error) {
	dataDir := filepath.Join("local_data", fmt.Sprintf("data_slot_%d", cfg.DataSlot))

	fence, err := bus.NewSessionFence(filepath.Join(dataDir, ".session_id"), 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("session fence: %w", err)
	}

	outbox := bus.NewOutbox(filepath.Join(dataDir, "outbox.jsonc"), cfg.Queues.OutboxCap)
	if err := outbox.EnsureExists(); err != nil {
		return nil, fmt.Errorf("outbox: %w", err)
	}
	inbox := bus.NewInbox(filepath.Join(dataDir, "inbox.jsonc"))
	if err := inbox.EnsureExists(); err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	eventLog := bus.NewLog(filepath.Join(dataDir, "log.jsonc"), cfg.Queues.LogCap, cfg.Queues.NoiseTypes)
	if err := eventLog.EnsureExists(); err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}

	actors := world.NewStore(filepath.Join(dataDir, "actors"), world.KindActor)
	npcs := world.NewStore(filepath.Join(dataDir, "npcs"), world.KindNPC)
	items := world.NewStore(filepath.Join(dataDir, "items"), world.KindItem)
	places := world.NewPlaceStore(filepath.Join(dataDir, "places"))
	gameTime := world.NewGameTimeStore(filepath.Join(dataDir, "game_time.jsonc"))

	idx := place.NewIndex()
	if err := populatePlaceIndex(ctx, idx, npcs, world.KindNPC); err != nil {
		return nil, err
	}
	if err := populatePlaceIndex(ctx, idx, actors, world.KindActor); err != nil {
		return nil, err
	}

	resolver := refs.New(refs.Stores{Actors: actors, NPCs: npcs, Items: items, Places: places}, false)
	tagReg := tags.NewRegistry()

	effectsApplier := effects.New(&effects.Deps{
		Actors:   actors,
		NPCs:     npcs,
		Items:    items,
		Places:   places,
		GameTime: gameTime,
		Tags:     tagReg,
	}, resolver)

	verbs := action.NewRegistry()
	for _, v := range action.DefaultVerbs() {
		verbs.Register(v)
	}

	pipeline := action.New(verbs, tagReg, action.Deps{
		GetActorData: func(ctx context.Context, ref string) (world.Entity, error) {
			return lookupEntity(ctx, actors, npcs, ref)
		},
		GetAvailableTargets: func(ctx context.Context, actor world.Entity) ([]action.Candidate, error) {
			return availableCandidates(ctx, idx, actors, npcs, actor)
		},
		CheckActorAwareness: func(ctx context.Context, actor world.Entity, targetRef string) (bool, error) {
			for _, ref := range actor.Awareness {
				if ref == targetRef {
					return true, nil
				}
			}
			return false, nil
		},
		GetEquippedItems: func(ctx context.Context, actor world.Entity) ([]world.Entity, error) {
			var equipped []world.Entity
			for _, slot := range actor.Inventory {
				item, err := items.Get(ctx, slot.ItemID)
				if err != nil {
					if errors.Is(err, world.ErrNotFound) {
						continue
					}
					return nil, err
				}
				equipped = append(equipped, item)
			}
			return equipped, nil
		},
		CanAfford: func(ctx context.Context, actor world.Entity, costClass string) (bool, error) {
			if costClass == "" || costClass == "free" {
				return true, nil
			}
			res, tracked := actor.Resources[costClass]
			if !tracked {
				return true, nil
			}
			return res.Current > 0, nil
		},
		HasLineOfSight: func(a, b types.Location) bool { return a.PlaceID == b.PlaceID },
		GetObservers: func(ctx context.Context, actor world.Entity) ([]action.Observer, error) {
			return observersAt(ctx, idx, actors, npcs, actor)
		},
		ExecuteEffects: func(ctx context.Context, effectsText string) (effects.Outcome, error) {
			env := bus.MessageEnvelope{Meta: map[string]any{"effects": effectsText}}
			return effectsApplier.Apply(ctx, env)
		},
	})
	actionWorker := action.NewWorker(outbox, pipeline)

	r := roller.New(filepath.Join(dataDir, "roller_status.jsonc"), outbox)
	rollerWorker := roller.NewWorker(outbox, r)

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "renderer-ai"})
	history := renderer.NewSessionHistory(12)
	rendererWorker := renderer.NewWorker(outbox, provider, breaker, history, cfg.AI.RendererTimeout())

	presence := npcmove.NewPresenceStore()
	hub := wire.NewHub()
	npcController := npcmove.New(npcmove.Deps{
		LoadPlace: func(placeID string) (world.Place, error) { return places.Get(placeID) },
		NextGoal: npcmove.WanderGoals{
			LoadPlace: func(placeID string) (world.Place, error) { return places.Get(placeID) },
			TTL:       time.Duration(cfg.NPCMovement.MaxReassessIntervalMS) * time.Millisecond,
		}.Next,
		Emit: func(cmd npcmove.Command) {
			if err := hub.Broadcast(ctx, cmd); err != nil {
				slog.Warn("npc command broadcast failed", "err", err)
			}
		},
	}, presence, npcmove.Config{
		BatchSize:           cfg.NPCMovement.ReassessBatchSize,
		MaxReassessInterval: time.Duration(cfg.NPCMovement.MaxReassessIntervalMS) * time.Millisecond,
		BlockedThreshold:    time.Duration(cfg.NPCMovement.BlockedThresholdMS) * time.Millisecond,
		MaxPathDistance:     cfg.NPCMovement.MaxPathSearchDistance,
	})

	npcEntities, err := npcs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list npcs: %w", err)
	}
	for _, e := range npcEntities {
		if e.Location.PlaceID == "" {
			continue
		}
		npcController.Track(e.ID, e.Location.PlaceID, e.Location.Tile)
	}

	healthHandler := health.New(
		health.DataSlotWritable("data_slot", dataDir),
		health.SessionFenceFresh("session_fence", filepath.Join(dataDir, ".session_id"), 15*time.Second),
		health.AIProviderReachable("ai_provider", provider),
	)

	tickHz := cfg.NPCMovement.TickHz
	if tickHz <= 0 {
		tickHz = 4
	}

	return &application{
		sessionID:      fence.ID(),
		outbox:         outbox,
		staleThreshold: time.Duration(cfg.Queues.StaleProcessingThresholdMS) * time.Millisecond,
		actionWorker:   actionWorker,
		rollerWorker:   rollerWorker,
		rendererWorker: rendererWorker,
		npcController:  npcController,
		npcTickRate:    time.Duration(float64(time.Second) / tickHz),
		hub:            hub,
		health:         healthHandler,
		metricsHandler: promhttp.Handler(),
	}, nil
}

func populatePlaceIndex(ctx context.Context, idx *place.Index, store *world.Store, kind world.EntityKind) error {
	entities, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("populate place index (%s): %w", kind, err)
	}
	for _, e := range entities {
		if e.Location.PlaceID == "" {
			continue
		}
		idx.Move(e.ID, kind, "", e.Location.PlaceID)
	}
	return nil
}

func lookupEntity(ctx context.Context, actors, npcs *world.Store, ref string) (world.Entity, error) {
	if e, err := actors.Get(ctx, ref); err == nil {
		return e, nil
	}
	return npcs.Get(ctx, ref)
}

// availableCandidates adapts [place.GetAvailableTargets] to the action
// pipeline's [action.Candidate] shape, annotating hostility from the
// "hostile" tag and injecting the synthetic self/region_tile candidates
// DEFEND and COMMUNICATE default to.
func availableCandidates(ctx context.Context, idx *place.Index, actors, npcs *world.Store, actor world.Entity) ([]action.Candidate, error) {
	targets, err := place.GetAvailableTargets(ctx, idx, place.Stores{NPCs: npcs, Actors: actors}, actor.Location, 60)
	if err != nil {
		return nil, err
	}

	candidates := make([]action.Candidate, 0, len(targets)+2)
	for _, t := range targets {
		hostile := false
		if store := storeFor(actors, npcs, t.Type); store != nil {
			if e, err := store.Get(ctx, t.Ref); err == nil {
				hostile = e.HasTag("hostile")
			}
		}
		candidates = append(candidates, action.Candidate{
			Ref:      t.Ref,
			Name:     t.Name,
			Type:     string(t.Type),
			Location: t.Location,
			Hostile:  hostile,
		})
	}

	candidates = append(candidates,
		action.Candidate{Ref: "self", Name: actor.Name, Type: "self", Location: actor.Location},
		action.Candidate{Ref: "region_tile", Name: "the area", Type: "region_tile", Location: actor.Location},
	)
	return candidates, nil
}

func storeFor(actors, npcs *world.Store, kind world.EntityKind) *world.Store {
	switch kind {
	case world.KindActor:
		return actors
	case world.KindNPC:
		return npcs
	}
	return nil
}

// observersAt builds the observer list for perception filtering (§4.5 step
// 9) from every NPC/actor indexed at actor's place.
func observersAt(ctx context.Context, idx *place.Index, actors, npcs *world.Store, actor world.Entity) ([]action.Observer, error) {
	var observers []action.Observer
	for _, ref := range idx.NPCsIn(actor.Location.PlaceID) {
		e, err := npcs.Get(ctx, ref)
		if err != nil {
			continue
		}
		observers = append(observers, action.Observer{Ref: ref, Location: e.Location})
	}
	for _, ref := range idx.ActorsIn(actor.Location.PlaceID) {
		if ref == actor.ID {
			continue
		}
		e, err := actors.Get(ctx, ref)
		if err != nil {
			continue
		}
		observers = append(observers, action.Observer{Ref: ref, Location: e.Location})
	}
	return observers, nil
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
