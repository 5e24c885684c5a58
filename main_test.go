package main

import (
	"os"
	"os/signal"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLogLevelFromEnv(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.Disabled) })

	tests := []struct {
		value string
		want  zerolog.Level
	}{
		{"", zerolog.Disabled},
		{"false", zerolog.Disabled},
		{"0", zerolog.Disabled},
		{"true", zerolog.DebugLevel},
		{"1", zerolog.DebugLevel},
		{"yes", zerolog.DebugLevel},
		// Only the exact lower-case word switches logging off.
		{"FALSE", zerolog.DebugLevel},
	}
	for _, tt := range tests {
		t.Run("DEBUG_COLLABFLOW="+tt.value, func(t *testing.T) {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
			t.Setenv("DEBUG_COLLABFLOW", tt.value)
			configureLogLevelFromEnv()
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestConfigureLogLevelFromEnv_Unset(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.Disabled) })
	t.Setenv("DEBUG_COLLABFLOW", "1")
	require.NoError(t, os.Unsetenv("DEBUG_COLLABFLOW"))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configureLogLevelFromEnv()
	assert.Equal(t, zerolog.Disabled, zerolog.GlobalLevel())
}

// TestSetupInterruptListener sends a real SIGINT to the test process; the
// listener must capture it instead of letting it terminate the process.
func TestSetupInterruptListener(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("os.Interrupt cannot be sent on windows")
	}
	stopChan := setupInterruptListener()
	require.NotNil(t, stopChan)
	t.Cleanup(func() { signal.Stop(stopChan) })

	self, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, self.Signal(os.Interrupt))

	select {
	case sig := <-stopChan:
		assert.Equal(t, os.Interrupt, sig)
	case <-time.After(time.Second):
		t.Fatal("interrupt was not delivered to the listener")
	}
}

func TestHandleInterrupt(t *testing.T) {
	stopChan := make(chan os.Signal, 1)
	exitCodes := make(chan int, 1)
	var logged string

	go handleInterrupt(stopChan, func(msg string) { logged = msg }, func(code int) { exitCodes <- code })
	stopChan <- os.Interrupt

	select {
	case code := <-exitCodes:
		assert.Equal(t, 1, code)
		assert.Equal(t, "Interrupt signal received. Exiting...", logged)
	case <-time.After(time.Second):
		t.Fatal("exit was not called on interrupt")
	}
}

func TestHandleInterrupt_WaitsForSignal(t *testing.T) {
	exited := make(chan int, 1)
	go handleInterrupt(make(chan os.Signal), func(string) {}, func(code int) { exited <- code })

	select {
	case <-exited:
		t.Fatal("exit called without a signal")
	case <-time.After(50 * time.Millisecond):
	}
}
