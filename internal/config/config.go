// Package config handles Aureum configuration loading and management.
package config

import "time"

// Config holds all application settings.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Data     DataConfig     `yaml:"data"`
	Camera   CameraConfig   `yaml:"camera"`
	Detector DetectorConfig `yaml:"detector"`
	Gesture  GestureConfig  `yaml:"gesture"`
	Layout   LayoutConfig   `yaml:"layout"`
	Render   RenderConfig   `yaml:"render"`
	Upload   UploadConfig   `yaml:"upload"`
	Logging  LoggingConfig  `yaml:"logging"`

	// File is the config file that was loaded, or "" for defaults only.
	File string `yaml:"-"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	Headless  bool   `yaml:"headless"` // skip the system tray
}

// DataConfig holds on-disk locations.
type DataConfig struct {
	Dir string `yaml:"dir"` // recordings database and logs; empty means ConfigDir()
}

// CameraConfig holds capture settings for the hand tracker.
type CameraConfig struct {
	DeviceID        int           `yaml:"device_id"`
	EnabledOnStart  bool          `yaml:"enabled_on_start"`
	IdleFPS         int           `yaml:"idle_fps"`
	ActiveFPS       int           `yaml:"active_fps"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	MotionThreshold float64       `yaml:"motion_threshold"` // percent of changed pixels
	MotionGate      bool          `yaml:"motion_gate"`
}

// DetectorConfig holds hand landmark detection settings.
type DetectorConfig struct {
	MinConfidence   float64 `yaml:"min_confidence"`
	MinTrackingConf float64 `yaml:"min_tracking_conf"`
}

// GestureConfig holds classifier and pose derivation settings.
type GestureConfig struct {
	Hold        time.Duration `yaml:"hold"`
	OpenRatio   float64       `yaml:"open_ratio"`
	CurlRatio   float64       `yaml:"curl_ratio"`
	PinchRatio  float64       `yaml:"pinch_ratio"`
	WorldWidth  float64       `yaml:"world_width"`
	WorldHeight float64       `yaml:"world_height"`
	WorldDepth  float64       `yaml:"world_depth"`
}

// LayoutConfig holds formation geometry.
type LayoutConfig struct {
	TreeHeight    float64    `yaml:"tree_height"`
	TreeRadius    float64    `yaml:"tree_radius"`
	TreeBaseY     float64    `yaml:"tree_base_y"`
	TreeTilt      float64    `yaml:"tree_tilt"` // radians, leans photos toward the apex
	ClosedScale   float64    `yaml:"closed_scale"`
	CloudRadius   float64    `yaml:"cloud_radius"`
	ExplodedScale float64    `yaml:"exploded_scale"`
	ZoomPosition  [3]float64 `yaml:"zoom_position"`
	ZoomScale     float64    `yaml:"zoom_scale"`
	Seed          uint64     `yaml:"seed"`
}

// RenderConfig holds render loop and easing settings.
type RenderConfig struct {
	FPS        int     `yaml:"fps"`
	EaseRate   float64 `yaml:"ease_rate"` // per second
	Epsilon    float64 `yaml:"epsilon"`
	SpawnScale float64 `yaml:"spawn_scale"`
	MaxYaw     float64 `yaml:"max_yaw"`   // radians
	MaxPitch   float64 `yaml:"max_pitch"` // radians
	Backlog    int     `yaml:"backlog"`   // pending uploads/removals per frame
}

// UploadConfig holds decode worker settings.
type UploadConfig struct {
	MaxBytes     int64 `yaml:"max_bytes"`
	MaxDimension int   `yaml:"max_dimension"`
	Workers      int   `yaml:"workers"`
	Queue        int   `yaml:"queue"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Camera: CameraConfig{
			DeviceID:        0,
			IdleFPS:         5,
			ActiveFPS:       30,
			IdleTimeout:     2 * time.Second,
			MotionThreshold: 1.0,
			MotionGate:      true,
		},
		Detector: DetectorConfig{
			MinConfidence:   0.5,
			MinTrackingConf: 0.5,
		},
		Gesture: GestureConfig{
			Hold:        150 * time.Millisecond,
			OpenRatio:   1.6,
			CurlRatio:   1.4,
			PinchRatio:  0.25,
			WorldWidth:  20,
			WorldHeight: 12,
			WorldDepth:  10,
		},
		Layout: LayoutConfig{
			TreeHeight:    12,
			TreeRadius:    5,
			TreeBaseY:     -6,
			TreeTilt:      0.3,
			ClosedScale:   0.6,
			CloudRadius:   9,
			ExplodedScale: 1.0,
			ZoomPosition:  [3]float64{0, 0, 12},
			ZoomScale:     3.5,
			Seed:          0x6175726575,
		},
		Render: RenderConfig{
			FPS:        60,
			EaseRate:   4.0,
			Epsilon:    1e-4,
			SpawnScale: 0,
			MaxYaw:     0.8,
			MaxPitch:   0.4,
			Backlog:    64,
		},
		Upload: UploadConfig{
			MaxBytes:     25 << 20,
			MaxDimension: 1024,
			Workers:      2,
			Queue:        32,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
