package main

import (
	"context"
	"fmt"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish/logging"
	"github.com/deemkeen/anancus/db"
	"github.com/deemkeen/anancus/federation"
	"github.com/deemkeen/anancus/middleware"
	"github.com/deemkeen/anancus/util"
	"github.com/deemkeen/anancus/web"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/wish"
)

func main() {

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Configuration: ")
	fmt.Println(util.PrettyPrint(conf))

	util.GeneratePemKeypair()

	log.Println("Running database migrations...")
	database := db.GetDB()
	if err := database.RunFederationMigrations(); err != nil {
		log.Printf("Warning: Migration errors (may be normal if tables exist): %v", err)
	}
	log.Println("Database migrations complete")

	// Federation plumbing: one bus, one resolver, one inbox pipeline.
	bus := federation.NewEventBus()
	resolver := federation.NewResolver(bus)
	moves := federation.NewMoveCoordinator(
		database,
		&federation.DBMoveSideEffects{DB: database},
		federation.RefreshActor,
		conf.BaseURL(),
		bus,
	)
	polls := federation.NewPollSyncService(database, resolver, conf.BaseURL(), bus)
	processor := federation.NewInboxProcessor(conf, resolver, moves, polls, bus)

	if conf.Conf.WithAp {
		federation.StartDeliveryWorker(conf)
	}

	s, err := wish.NewServer(
		wish.WithAddress(fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.SshPort)),
		wish.WithHostKeyPath(".ssh/hostkey"),
		wish.WithPublicKeyAuth(publicKeyHandler),
		wish.WithMiddleware(
			middleware.MainTui(),
			middleware.AuthMiddleware(),
			logging.Middleware(), // last middleware executed first
		),
	)
	if err != nil {
		log.Fatalln(err)
	}

	startServing(s, conf, processor)
}

func startServing(s *ssh.Server, conf *util.AppConfig, processor *federation.InboxProcessor) {
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	log.Printf("Starting SSH server on %s:%d", conf.Conf.Host, conf.Conf.SshPort)
	go func() {
		if err := s.ListenAndServe(); err != nil {
			log.Fatalln(err)
		}
	}()

	go func() {
		if err := web.Router(conf, processor); err != nil {
			log.Fatalln(err)
		}
	}()

	<-done
	log.Println("Stopping SSH server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer func() { cancel() }()
	if err := s.Shutdown(ctx); err != nil {
		log.Fatalln(err)
	}
}

func publicKeyHandler(ssh.Context, ssh.PublicKey) bool {
	return true
}
