package main

import (
	"os"
	"os/signal"

	"github.com/collabflow/collabflow-cli/cmd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// main sets up logging from DEBUG_COLLABFLOW, exits on interrupt and runs the CLI.
func main() {
	configureLogLevelFromEnv()

	stopChan := setupInterruptListener()
	go handleInterrupt(stopChan, func(msg string) { log.Error().Msg(msg) }, os.Exit)

	cmd.Execute()
}

// configureLogLevelFromEnv enables debug logging unless DEBUG_COLLABFLOW is unset, "false" or "0".
func configureLogLevelFromEnv() {
	switch os.Getenv("DEBUG_COLLABFLOW") {
	case "", "false", "0":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func setupInterruptListener() chan os.Signal {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)
	return stopChan
}

// handleInterrupt waits for a signal, logs it and exits with status 1.
func handleInterrupt(stopChan chan os.Signal, logFn func(string), exit func(int)) {
	<-stopChan
	logFn("Interrupt signal received. Exiting...")
	exit(1)
}
