package main

import (
	"github.com/harithebeast/multimodal-ai/internal/bootstrap"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	bootstrap.Run()
}
