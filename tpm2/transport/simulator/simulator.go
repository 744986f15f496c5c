// Package simulator provides access to an in-process TPM simulator for
// testing.
package simulator

import (
	"fmt"

	"github.com/google/go-tpm-tools/simulator"

	"github.com/google/go-tpm-pcr/tpm2/transport"
)

// OpenSimulator starts a fresh, powered-on simulator with its PCR banks
// in the reset state. Each call returns an independent instance.
func OpenSimulator() (transport.TPMCloser, error) {
	sim, err := simulator.Get()
	if err != nil {
		return nil, fmt.Errorf("starting simulator: %w", err)
	}
	return transport.FromReadWriteCloser(sim), nil
}

// OpenSeededSimulator is like OpenSimulator, but the simulator's internal
// seeds are derived from seed so runs are reproducible.
func OpenSeededSimulator(seed int64) (transport.TPMCloser, error) {
	sim, err := simulator.GetWithFixedSeedInsecure(seed)
	if err != nil {
		return nil, fmt.Errorf("starting simulator with seed %d: %w", seed, err)
	}
	return transport.FromReadWriteCloser(sim), nil
}
