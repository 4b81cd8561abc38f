package main

import (
	"github.com/keytap/keytap/pkg/app/master"
)

func main() {
	app.Run()
}
