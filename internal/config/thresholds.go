package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/nga-flood-trigger/internal/domain"
)

// Thresholds are the trigger and return-period settings loaded once at start-up.
type Thresholds struct {
	Activation       domain.TriggerThresholds `yaml:"activation"`
	Warning          domain.TriggerThresholds `yaml:"warning"`
	ReturnPeriods    []float64                `yaml:"return_periods" validate:"min=1,dive,gt=1"`
	TargetCombinedRP float64                  `yaml:"target_combined_rp" validate:"gt=1"`
	FlashFlood       FlashFlood               `yaml:"flash_flood"`
}

// FlashFlood configures the observational flash-flood trigger. An empty LGA
// list disables it.
type FlashFlood struct {
	Window int                   `yaml:"window" validate:"gte=1"`
	LGAs   []domain.LGAThreshold `yaml:"lgas" validate:"dive"`
}

// DefaultThresholds are used when no thresholds file is configured. The
// warning pair falls back to the activation pair.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Activation:       domain.DefaultActivationThresholds(),
		Warning:          domain.DefaultActivationThresholds(),
		ReturnPeriods:    domain.DefaultTargetReturnPeriods(),
		TargetCombinedRP: 5,
		FlashFlood: FlashFlood{
			Window: domain.DefaultRollingWindow,
			LGAs:   domain.DefaultLGAThresholds(),
		},
	}
}

// For returns the threshold pair for a trigger level.
func (t Thresholds) For(level domain.TriggerLevel) domain.TriggerThresholds {
	if level == domain.LevelWarning {
		return t.Warning
	}
	return t.Activation
}

// LoadThresholds reads a YAML thresholds file over the defaults. An empty
// path returns the defaults.
func LoadThresholds(path string) (Thresholds, error) {
	th := DefaultThresholds()
	if path == "" {
		return th, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Thresholds{}, fmt.Errorf("read thresholds file: %w", err)
	}
	if strings.TrimSpace(string(content)) == "" {
		return Thresholds{}, errors.New("thresholds file is empty")
	}
	if err := yaml.Unmarshal(content, &th); err != nil {
		return Thresholds{}, fmt.Errorf("parse thresholds file %s: %w", path, err)
	}
	var set struct {
		Warning *domain.TriggerThresholds `yaml:"warning"`
	}
	if err := yaml.Unmarshal(content, &set); err != nil {
		return Thresholds{}, fmt.Errorf("parse thresholds file %s: %w", path, err)
	}
	if set.Warning == nil {
		th.Warning = th.Activation
	}
	if err := ValidateThresholds(th); err != nil {
		return Thresholds{}, err
	}
	return th, nil
}

var validate = validator.New()

// ValidateThresholds checks every threshold is positive and every return period > 1.
func ValidateThresholds(th Thresholds) error {
	if err := validate.Struct(th); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid thresholds: %s", strings.Join(fields, "; "))
		}
		return fmt.Errorf("invalid thresholds: %w", err)
	}
	return nil
}
