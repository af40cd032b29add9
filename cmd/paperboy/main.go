package main

import (
	"os"

	"horse.fit/paperboy/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
