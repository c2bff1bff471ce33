//go:build !profile
// +build !profile

package main

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/manage"
)

func doMain() {
	ctlc := make(chan os.Signal, 1)
	signal.Notify(ctlc, os.Interrupt, syscall.SIGTERM)

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
}
