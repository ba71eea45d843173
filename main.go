package main

import (
	"embed"
	"io/fs"
	"log"

	"whisper-batch/internal/bootstrap"
)

//go:embed all:frontend
var embedded embed.FS

func main() {
	assets, err := fs.Sub(embedded, "frontend")
	if err != nil {
		log.Fatalf("load frontend assets: %v", err)
	}

	app, err := bootstrap.NewWithAssets(assets)
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
