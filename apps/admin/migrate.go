package main

import (
	"qugrow/storage/database"
)

var migrateFunc = database.Migrate // mockable

func (cli *commandLine) migrate() error {
	return migrateFunc(cli.db.DB, cli.conf)
}
