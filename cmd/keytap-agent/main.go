package main

import (
	"github.com/keytap/keytap/pkg/app/agent"
)

func main() {
	agent.Run()
}
