package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MJE43/stake-roulette-sim/internal/games"
)

const maxSeedLength = 256

func validateSeeds(seeds games.Seeds) error {
	var errs []error
	if seeds.Server == "" {
		errs = append(errs, fmt.Errorf("server seed is required"))
	} else if len(seeds.Server) > maxSeedLength {
		errs = append(errs, fmt.Errorf("server seed longer than %d characters", maxSeedLength))
	}
	if seeds.Client == "" {
		errs = append(errs, fmt.Errorf("client seed is required"))
	} else if len(seeds.Client) > maxSeedLength {
		errs = append(errs, fmt.Errorf("client seed longer than %d characters", maxSeedLength))
	}
	return errors.Join(errs...)
}

// ValidateVerifyRequest checks a verify request.
func ValidateVerifyRequest(req *VerifyRequest) error {
	return validateSeeds(req.Seeds)
}

// ValidateSimulateRequest checks a simulate request against the round cap.
func ValidateSimulateRequest(req *SimulateRequest, maxRounds int) error {
	var errs []error
	if err := validateSeeds(req.Seeds); err != nil {
		errs = append(errs, err)
	}
	if req.MaxRounds <= 0 {
		errs = append(errs, fmt.Errorf("max_rounds must be positive"))
	} else if req.MaxRounds > maxRounds {
		errs = append(errs, fmt.Errorf("max_rounds too large (max %d)", maxRounds))
	}
	if len(req.StopRule) > 4096 {
		errs = append(errs, fmt.Errorf("stop_rule too long"))
	}
	return errors.Join(errs...)
}

// ValidateSeedHashRequest checks a seed hash request.
func ValidateSeedHashRequest(req *SeedHashRequest) error {
	if strings.TrimSpace(req.ServerSeed) == "" {
		return fmt.Errorf("server_seed is required")
	}
	if len(req.ServerSeed) > maxSeedLength {
		return fmt.Errorf("server_seed longer than %d characters", maxSeedLength)
	}
	return nil
}
