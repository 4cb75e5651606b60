package main

import (
	"fmt"
	"os"
)

// getEnv returns the environment variable named key, or fallback when unset.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// mustGetenv looks up name, erroring if it is unset — callers use this for
// API-key/token env vars config.Initialize has already validated as set.
func mustGetenv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return v, nil
}
