package config_test

import (
	"fmt"

	"github.com/normanking/switchboard/internal/config"
)

// ExampleDefault demonstrates the routing defaults.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Short message threshold: %d\n", cfg.Router.ShortMessageThreshold)
	fmt.Printf("Long context threshold: %d\n", cfg.Router.LongContextThreshold)
	fmt.Printf("Fallback strategy: %s\n", cfg.Router.FallbackStrategy)
	fmt.Printf("Kimi model: %s\n", cfg.Providers.Kimi.Model)
	// Output:
	// Short message threshold: 150
	// Long context threshold: 1200
	// Fallback strategy: local
	// Kimi model: moonshot-v1-8k
}

// ExampleConfig_Validate demonstrates configuration validation.
func ExampleConfig_Validate() {
	cfg := config.Default()
	cfg.Router.FallbackStrategy = "random"

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Validation error: %v\n", err)
	}
	// Output:
	// Validation error: invalid fallback_strategy 'random', must be 'local' or 'chain'
}
