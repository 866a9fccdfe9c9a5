package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/profile"

	"x-voxels/backend/internal/adapter/in/ws"
	sim "x-voxels/backend/internal/adapter/out/physics"
	"x-voxels/backend/internal/game"
	"x-voxels/backend/internal/physics"
	"x-voxels/backend/internal/telemetry"
	"x-voxels/backend/internal/world"
)

func main() {
	// Флаги командной строки
	var (
		addr        = flag.String("addr", ":8080", "Адрес HTTP сервера")
		tps         = flag.Int("tps", 60, "Частота игрового цикла, тиков в секунду")
		originX     = flag.Float64("origin-x", 0, "Сдвиг начала координат симуляции по X")
		originY     = flag.Float64("origin-y", 0, "Сдвиг начала координат симуляции по Y")
		originZ     = flag.Float64("origin-z", 0, "Сдвиг начала координат симуляции по Z")
		terrainSize = flag.Int("terrain", 32, "Размер стартового террейна в столбцах (0 - без сцены)")
		boxes       = flag.Int("boxes", 8, "Число падающих коробок в стартовой сцене")
		snapshot    = flag.Duration("snapshot", 100*time.Millisecond, "Интервал рассылки снимков клиентам")
		profileMode = flag.String("profile", "", "Профилирование: cpu или mem")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	switch *profileMode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "":
	default:
		logger.Fatalf("[Server] Неизвестный режим профилирования: %q", *profileMode)
	}

	// Физика
	config := physics.DefaultConfig()
	config.OriginOffset = mgl32.Vec3{float32(*originX), float32(*originY), float32(*originZ)}
	solver := sim.NewSimWorld(world.GetObjectConfig().Gravity)
	engine, err := physics.NewEngine(solver, config, logger)
	if err != nil {
		logger.Fatalf("[Server] Ошибка создания физического движка: %v", err)
	}
	engine.Init()

	factory := world.NewFactory(world.NewManager(), engine, logger)

	if *terrainSize > 0 {
		scene := world.DefaultSceneConfig()
		scene.Origin = config.OriginOffset
		scene.TerrainSize = *terrainSize
		scene.Boxes = *boxes
		voxels, objects := world.NewSceneCreator(factory, scene).CreateAll()
		logger.Printf("[Server] Сцена создана: вокселей %d, объектов %d", voxels, objects)
	}

	// Игровой цикл
	tm := telemetry.NewTelemetryManager(600, logger)
	queue := game.NewCommandQueue(1024)
	ticker := game.NewGameTicker(*tps, queue, logger)

	adapter := ws.NewWSAdapter(queue, factory, tm, logger)
	adapter.SetSystemsSource(ticker)
	ticker.RegisterSystem(game.NewPhysicsSystem(factory, tm, logger))
	ticker.RegisterSystem(ws.NewSnapshotSystem(adapter, factory.Manager(), *snapshot))
	ticker.RegisterSystem(game.NewMetricsSystem(ticker, tm, logger))

	if err := ticker.Start(); err != nil {
		logger.Fatalf("[Server] Ошибка запуска игрового цикла: %v", err)
	}

	// HTTP
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", adapter.HandleWS)
	mux.HandleFunc("/telemetry", func(w http.ResponseWriter, r *http.Request) {
		data, err := tm.GetTelemetryJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(data))
	})

	server := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("[Server] Слушаем %s", *addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("[Server] Ошибка HTTP сервера: %v", err)
		}
	}()

	// Обработка сигналов для корректного завершения
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Printf("[Server] Получен сигнал прерывания, завершение работы...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("[Server] Ошибка остановки HTTP сервера: %v", err)
	}

	// после остановки цикла движок принадлежит этой горутине
	ticker.Stop()
	tm.PrintSummary()
	engine.Close()
}
