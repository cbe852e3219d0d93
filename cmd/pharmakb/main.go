package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/pharmakb/pharmakb/cmd/pharmakb/app"
)

func main() {
	app.NewApp().Run()
}
