package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Config holds the detection thresholds. The zero value is not useful,
// start from DefaultConfig.
type Config struct {
	// DiffThreshold is the per-pixel absolute intensity difference above
	// which a pixel counts as changed (default: 50).
	DiffThreshold uint8 `json:"diff_threshold"`
	// SettleFraction is the changed-pixel fraction below which the scene
	// is judged static (default: 0.01).
	SettleFraction float64 `json:"settle_fraction"`
	// MinRegionArea is the pixel count a region must exceed to be kept
	// (default: 1000).
	MinRegionArea int `json:"min_region_area"`
	// SuspiciousDuration is measured from the first frame of the clip
	// (default: 30s).
	SuspiciousDuration Duration `json:"suspicious_duration"`
	// BlurSigma is the Gaussian sigma applied before differencing
	// (default: 1.1, the sigma OpenCV derives for a 5x5 kernel; gift sizes
	// its kernel from sigma, so this approximates a 5x5 blur).
	BlurSigma float32 `json:"blur_sigma"`
	// TickInterval is the delay between frames when driven by a Driver
	// (default: 30ms).
	TickInterval Duration `json:"tick_interval"`
	// RequireRegions only lets the alert fire on a frame that has at least
	// one region (default: false).
	RequireRegions bool `json:"require_regions"`
	// OutlineColor is a hex colour for region outlines. Empty picks a
	// distinct warm colour per region (default: "#00ff00").
	OutlineColor string `json:"outline_color"`
	// OutlineWidth in pixels (default: 2).
	OutlineWidth int `json:"outline_width"`
}

// Duration is a time.Duration that reads and writes JSON strings like "30s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int64
		if nerr := json.Unmarshal(b, &n); nerr != nil {
			return fmt.Errorf("duration must be a string like \"30s\": %w", err)
		}
		*d = Duration(time.Duration(n) * time.Millisecond)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		DiffThreshold:      50,
		SettleFraction:     0.01,
		MinRegionArea:      1000,
		SuspiciousDuration: Duration(30 * time.Second),
		BlurSigma:          1.1,
		TickInterval:       Duration(30 * time.Millisecond),
		OutlineColor:       "#00ff00",
		OutlineWidth:       2,
	}
}

// LoadConfig reads a JSON config file. Fields missing from the file keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return cfg, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fi, err := os.Stat(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 << 20
	if fi.Size() > maxFileSize {
		return cfg, fmt.Errorf("config file too large: %d bytes (max %d)", fi.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every field is in range.
func (c Config) Validate() error {
	if c.SettleFraction <= 0 || c.SettleFraction > 1 {
		return fmt.Errorf("settle_fraction must be in (0, 1], got %v", c.SettleFraction)
	}
	if c.MinRegionArea < 0 {
		return fmt.Errorf("min_region_area must be non-negative, got %d", c.MinRegionArea)
	}
	if c.SuspiciousDuration <= 0 {
		return fmt.Errorf("suspicious_duration must be positive, got %v", time.Duration(c.SuspiciousDuration))
	}
	if c.BlurSigma < 0 {
		return fmt.Errorf("blur_sigma must be non-negative, got %v", c.BlurSigma)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", time.Duration(c.TickInterval))
	}
	if c.OutlineWidth < 1 {
		return fmt.Errorf("outline_width must be at least 1, got %d", c.OutlineWidth)
	}
	if c.OutlineColor != "" {
		if _, err := colorful.Hex(c.OutlineColor); err != nil {
			return fmt.Errorf("outline_color %q: %w", c.OutlineColor, err)
		}
	}
	return nil
}
