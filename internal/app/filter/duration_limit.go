package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pocketbox/internal/domain/track"
)

// CodeDurationLimit is returned for tracks outside the configured length.
const CodeDurationLimit = "duration_limit_exceeded"

// DurationLimitConfig represents the configuration for DurationLimitFilter.
type DurationLimitConfig struct {
	MinSeconds    float64 `yaml:"min_seconds" mapstructure:"min_seconds" default:"5" validate:"gte=0"`
	MaxSeconds    float64 `yaml:"max_seconds" mapstructure:"max_seconds" validate:"gte=0"` // 0 means no limit
	RejectUnknown bool    `yaml:"reject_unknown" mapstructure:"reject_unknown"`            // Reject tracks whose duration could not be probed
}

// DurationLimitFilter checks if track duration is within allowed limits.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Checks if track duration is within allowed limits"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{CodeDurationLimit}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig

	// Decode map[string]any to struct using mapstructure
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	// Set defaults
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	// Validate using validator
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	// Custom validation: min_seconds cannot be greater than max_seconds
	if config.MaxSeconds > 0 && config.MinSeconds > config.MaxSeconds {
		return errors.New("min_seconds cannot be greater than max_seconds")
	}
	f.config = &config
	zlog.Info().Msgf("filter: duration limit config: %+v", config)
	return nil
}

func (f *DurationLimitFilter) AppliesTo(p track.Provenance) bool {
	// Device media is never imported
	return p != track.ProvenanceDevice
}

func (f *DurationLimitFilter) Check(ctx context.Context, candidate track.Track, catalog []track.Track) Result {
	// If config is not set, accept all tracks
	if f.config == nil {
		return Accept()
	}

	if candidate.Duration == 0 {
		if f.config.RejectUnknown {
			return Reject(CodeDurationLimit)
		}
		return Accept()
	}

	seconds := float64(candidate.Duration) / 1000

	// Check minimum duration
	if seconds < f.config.MinSeconds {
		return Reject(CodeDurationLimit)
	}

	// Check maximum duration
	if f.config.MaxSeconds > 0 && seconds > f.config.MaxSeconds {
		return Reject(CodeDurationLimit)
	}

	return Accept()
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return NewDurationLimitFilter()
	})
}
