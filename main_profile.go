//go:build profile
// +build profile

package main

// View all Profiles
//   Browser goto `http://localhost:6060/debug/pprof/`
//
// Profile Examples
//   Terminal
//     Tab1 Run `go run -tags profile github.com/jonoton/vigil`
//     Tab2 Run `go tool pprof -http localhost:8081 http://localhost:6060/debug/pprof/profile?seconds=2`
//
//     Tab2 Run `go tool pprof -http localhost:8081 http://localhost:6060/debug/pprof/heap`
//     Tab2 Run `go tool pprof -http localhost:8081 http://localhost:6060/debug/pprof/goroutine`
//

import (
	baseHttp "net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/manage"
	"github.com/jonoton/vigil/memory"
)

func doMain() {
	ctlc := make(chan os.Signal, 1)
	signal.Notify(ctlc, os.Interrupt, syscall.SIGTERM)

	// HTTP for Profiling
	go func() {
		log.Println(baseHttp.ListenAndServe(":6060", nil))
	}()

	m, err := manage.NewManage()
	if err != nil {
		log.Errorln("Could not start:", err)
		return
	}
	go func() {
		<-ctlc
		log.Println("Captured ctrl-c")
		m.Stop()
	}()
	m.Start()
	go func() {
		if err := m.Server().Listen(); err != nil {
			log.Errorln("Control server:", err)
		}
	}()
	m.Wait()
	if err := m.Server().Shutdown(); err != nil {
		log.Warnln("Control server shutdown:", err)
	}
	for i := 0; i < 20; i++ {
		time.Sleep(time.Second)
		log.Infoln("Memory Profile:", memory.NewMemory())
	}
}
