package main

import (
	"os"
	"os/signal"

	"github.com/retgits/bamboo-bridge/bamboo"
	"github.com/retgits/bamboo-bridge/common"
	"github.com/rs/zerolog/log"
)

func main() {
	// Handle common startup processes
	common.HandleSetup()

	// Create a new agent
	agent, err := bamboo.Register()
	if err != nil {
		log.Fatal().Msgf("fatal error while creating agent: %s", err.Error())
	}

	// Create a channel to wait for quit signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	// Create a go routine that will wait for a signal interrupt
	// to gracefully shutdown the agent
	go func() {
		<-quit
		log.Info().Msg("Received os.Interrupt signal")
		agent.Stop()
		os.Exit(0)
	}()

	// Start the agent
	done := agent.Start()
	log.Info().Msg("Started agent successfully and waiting for messages...")
	<-done
}
