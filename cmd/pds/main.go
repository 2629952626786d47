package main

import (
	"github.com/plxtools/plx-data-service/internal/app"
)

func main() {
	app.Run()
}
