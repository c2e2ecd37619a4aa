package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/tazhate/solcal/internal/mcp"
)

func main() {
	_ = godotenv.Load()

	// stdout carries the protocol, logs go to stderr
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	server := mcp.NewServer(os.Getenv("SOLCAL_API_URL"), os.Getenv("API_USERNAME"), os.Getenv("API_PASSWORD"), log)
	if err := server.Run(os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("mcp server failed")
	}
}
