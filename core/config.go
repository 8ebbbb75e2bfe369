package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env      string
		Build    string
		Debug    bool
		TestMode bool
		WorkDir  string

		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		Server    ServerConfig
		Clock     ClockConfig
		Gate      GateConfig
		Capture   CaptureConfig
		Monitor   MonitorConfig
		Timetable []PeriodConfig
	}

	ServerConfig struct {
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		DisableReqLogs     bool
	}

	ClockConfig struct {
		TickInterval time.Duration
	}

	GateConfig struct {
		AutoDisable time.Duration // 0: no countdown
	}

	CaptureConfig struct {
		StageDelay   time.Duration
		ReleaseDelay time.Duration
		SuccessRate  float64
		IdealWidth   int
		IdealHeight  int
		FacingMode   string
	}

	MonitorConfig struct {
		GeofenceInterval time.Duration
		BehaviorInterval time.Duration
		PresenceInterval time.Duration
		AlertRate        float64
		AnomalyRate      float64
		InitialInside    int
		InitialOutside   int
		InitialAlerts    int
		BoundaryName     string
		BoundaryLat      float64
		BoundaryLng      float64
		BoundaryRadius   float64 // meters
	}

	// PeriodConfig describes one timetable period as written in config files.
	PeriodConfig struct {
		Name  string `mapstructure:"name"`
		Start string `mapstructure:"start"` // HH:MM, 24h
		End   string `mapstructure:"end"`
		Kind  string `mapstructure:"kind"`
	}
)

// NewConfig loads the configuration from defaults, an optional config.yaml,
// an optional config/.env.<env> file and the environment (prefixed with ENV).
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	setDefaults(v, env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(workDir, "config"))
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("config.ReadInConfig: %v", err)
		}
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		WorkDir:         workDir,
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("appName"),
			Address: v.GetString("defaultFromEmail"),
		},
		SendgridApiKey: v.GetString("sendgridApiKey"),
		RollbarToken:   v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
			DisableReqLogs:     v.GetBool("server.disableReqLogs"),
		},
		Clock: ClockConfig{
			TickInterval: v.GetDuration("clock.tickInterval"),
		},
		Gate: GateConfig{
			AutoDisable: v.GetDuration("gate.autoDisable"),
		},
		Capture: CaptureConfig{
			StageDelay:   v.GetDuration("capture.stageDelay"),
			ReleaseDelay: v.GetDuration("capture.releaseDelay"),
			SuccessRate:  v.GetFloat64("capture.successRate"),
			IdealWidth:   v.GetInt("capture.idealWidth"),
			IdealHeight:  v.GetInt("capture.idealHeight"),
			FacingMode:   v.GetString("capture.facingMode"),
		},
		Monitor: MonitorConfig{
			GeofenceInterval: v.GetDuration("monitor.geofenceInterval"),
			BehaviorInterval: v.GetDuration("monitor.behaviorInterval"),
			PresenceInterval: v.GetDuration("monitor.presenceInterval"),
			AlertRate:        v.GetFloat64("monitor.alertRate"),
			AnomalyRate:      v.GetFloat64("monitor.anomalyRate"),
			InitialInside:    v.GetInt("monitor.initialInside"),
			InitialOutside:   v.GetInt("monitor.initialOutside"),
			InitialAlerts:    v.GetInt("monitor.initialAlerts"),
			BoundaryName:     v.GetString("monitor.boundaryName"),
			BoundaryLat:      v.GetFloat64("monitor.boundaryLat"),
			BoundaryLng:      v.GetFloat64("monitor.boundaryLng"),
			BoundaryRadius:   v.GetFloat64("monitor.boundaryRadius"),
		},
	}
	if v.IsSet("timetable") {
		if err := v.UnmarshalKey("timetable", &conf.Timetable); err != nil {
			log.Fatalf("config.timetable: %v", err)
		}
	}
	return conf
}

func setDefaults(v *viper.Viper, env string) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Presence")
	v.SetDefault("secretKey", "wq8-3ii)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 12*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("clock.tickInterval", time.Second)

	v.SetDefault("gate.autoDisable", 30*time.Minute)

	v.SetDefault("capture.stageDelay", 800*time.Millisecond)
	v.SetDefault("capture.releaseDelay", 3*time.Second)
	v.SetDefault("capture.successRate", 0.9)
	v.SetDefault("capture.idealWidth", 640)
	v.SetDefault("capture.idealHeight", 480)
	v.SetDefault("capture.facingMode", "user")

	v.SetDefault("monitor.geofenceInterval", 15*time.Second)
	v.SetDefault("monitor.behaviorInterval", 30*time.Second)
	v.SetDefault("monitor.presenceInterval", time.Minute)
	v.SetDefault("monitor.alertRate", 0.1)
	v.SetDefault("monitor.anomalyRate", 0.1)
	v.SetDefault("monitor.initialInside", 45)
	v.SetDefault("monitor.initialOutside", 8)
	v.SetDefault("monitor.initialAlerts", 2)
	v.SetDefault("monitor.boundaryName", "Engineering College Delhi")
	v.SetDefault("monitor.boundaryLat", 28.6139)
	v.SetDefault("monitor.boundaryLng", 77.2090)
	v.SetDefault("monitor.boundaryRadius", 100.0)
}
