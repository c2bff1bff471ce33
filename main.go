package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/jonoton/vigil/control"
)

func init() {
	formatter := &log.TextFormatter{}
	formatter.TimestampFormat = "01-02-2006 15:04:05"
	formatter.FullTimestamp = true
	log.SetFormatter(formatter)
	log.SetOutput(os.Stdout)
	// log.SetReportCaller(true)

	// Only log the warning severity or above.
	// log.SetLevel(log.WarnLevel)
}

func usage() {
	log.Printf("How to run:\n\t%s NO ARGS\n\t%s hash-password PASSWORD\n", os.Args[0], os.Args[0])
}

// hashPassword prints the bcrypt hash for the users list in control.yaml
func hashPassword(password string) {
	hash, err := control.HashPassword(password)
	if err != nil {
		log.Errorln("Could not hash password:", err)
		return
	}
	fmt.Println(hash)
}

func main() {
	switch {
	case len(os.Args) == 1:
		doMain()
	case len(os.Args) == 3 && os.Args[1] == "hash-password":
		hashPassword(os.Args[2])
	default:
		usage()
	}
}
