package main

import (
	"log"
	"os"

	"qugrow/core"
	"qugrow/core/user"
	emailsvc "qugrow/services/email"
	"qugrow/storage/database"
	sqlxrepos "qugrow/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	// start CLI
	cli := commandLine{
		conf:   conf,
		db:     db,
		usrSvc: user.NewService(sqlxrepos.NewUserRepository(db), emailsvc.NewConsoleService(conf), conf),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
