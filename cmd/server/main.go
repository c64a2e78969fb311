// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/grindline/skate-service/internal/auth"
	"github.com/grindline/skate-service/internal/battle"
	"github.com/grindline/skate-service/internal/cache"
	"github.com/grindline/skate-service/internal/config"
	"github.com/grindline/skate-service/internal/database"
	"github.com/grindline/skate-service/internal/game"
	"github.com/grindline/skate-service/internal/handlers"
	"github.com/grindline/skate-service/internal/middleware"
	"github.com/grindline/skate-service/internal/notify"
	"github.com/grindline/skate-service/internal/scheduler"
)

func main() {
	auth.Init()
	database.ConnectDB()
	if err := database.Migrate(context.Background()); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if err := cache.ConnectRedis(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	timeouts := config.Load()
	notifier := notify.NewRedisNotifier(logger)

	matchStore := database.NewMatchStore(database.DB)
	voteStore := database.NewVoteStore(database.DB)

	games := game.NewService(matchStore, notifier, logger, timeouts)
	battles := battle.NewService(voteStore, notifier, logger, timeouts)

	sched := scheduler.New(games, battles, logger, timeouts)
	go sched.Run()
	defer sched.Stop()

	matchSrv := handlers.NewMatchServer(games, logger)
	battleSrv := handlers.NewBattleServer(battles, logger)

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)
	mux.Handle("/user/stats", logged(handlers.StatsHandler(matchStore)))

	// match endpoints
	mux.Handle("/game/create", logged(http.HandlerFunc(matchSrv.CreateGameHandler)))
	mux.Handle("/game/join", logged(http.HandlerFunc(matchSrv.JoinGameHandler)))
	mux.Handle("/game/trick", logged(http.HandlerFunc(matchSrv.SubmitTrickHandler)))
	mux.Handle("/game/pass", logged(http.HandlerFunc(matchSrv.PassTrickHandler)))
	mux.Handle("/game/forfeit", logged(http.HandlerFunc(matchSrv.ForfeitGameHandler)))
	mux.Handle("/game/state/", logged(http.HandlerFunc(matchSrv.GetMatchHandler)))

	// match event stream
	mux.Handle("/game/ws/", logged(http.HandlerFunc(
		handlers.MatchWSHandler(logger, matchSrv),
	)))

	// battle voting endpoints
	mux.Handle("/battle/vote/start", logged(http.HandlerFunc(battleSrv.StartVotingHandler)))
	mux.Handle("/battle/vote", logged(http.HandlerFunc(battleSrv.CastVoteHandler)))
	mux.Handle("/battle/votes/", logged(http.HandlerFunc(battleSrv.GetVoteStateHandler)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
