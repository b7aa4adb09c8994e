package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort       = "3000"
	DefaultAppTitle   = "Login System"
	DefaultAPIBaseURL = "http://localhost:8001/api"
	DefaultAPITimeout = 10 * time.Second
	DefaultSessionTTL = 7 * 24 * time.Hour
)

var configFilePath string

// Defaults는 설정 파일이 없을 때 사용하는 기본 설정
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       DefaultPort,
			AppTitle:   DefaultAppTitle,
			SessionTTL: DefaultSessionTTL,
		},
		API: API{
			BaseURL: DefaultAPIBaseURL,
			Timeout: DefaultAPITimeout,
		},
		Datasource: Datasource{
			URL: "data/portal.db",
		},
		Log: Log{
			Level:  "info",
			Pretty: true,
		},
	}
}

func SetConfig(goEnv string) {
	log.Info().Msgf("Loading configuration for environment: %s", goEnv)

	if err := Load("config", goEnv); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log.Info().Msgf("Config file loaded: %s", configFilePath)
}

// Load는 dir 아래의 config.<env>.yaml 을 읽어 Conf 에 반영한다.
// 파일이 없으면 기본값으로 파일을 만든다.
func Load(dir, goEnv string) error {
	name := "config.dev"
	if goEnv == "production" {
		name = "config.prod"
	}

	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigType("yaml")
	v.SetConfigName(name)
	v.SetEnvPrefix("PORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Defaults())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}

		configFilePath = filepath.Join(dir, name+".yaml")
		Conf = Defaults()
		log.Warn().Str("path", configFilePath).Msg("Config file not found, writing defaults")
		if err := SaveConfig(); err != nil {
			return err
		}
	} else {
		configFilePath = v.ConfigFileUsed()
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(conf); err != nil {
		return err
	}

	Conf = conf
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.app_title", d.Server.AppTitle)
	v.SetDefault("server.cookie_secure", d.Server.CookieSecure)
	v.SetDefault("server.session_ttl", d.Server.SessionTTL)
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("database.url", d.Datasource.URL)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.pretty", d.Log.Pretty)
}

// Validate는 서버 기동에 필요한 값을 검사한다
func Validate(conf Config) error {
	port := strings.TrimSpace(conf.Server.Port)
	if port == "" {
		return errors.New("server.port is required")
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return errors.New("server.port must be an integer between 1 and 65535")
	}
	if strings.TrimSpace(conf.API.BaseURL) == "" {
		return errors.New("api.base_url is required")
	}
	if conf.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if strings.TrimSpace(conf.Datasource.URL) == "" {
		return errors.New("database.url is required")
	}
	return nil
}

// SaveConfig는 설정을 YAML 파일에 저장합니다
func SaveConfig() error {
	data, err := yaml.Marshal(&Conf)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(configFilePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	if err := os.WriteFile(configFilePath, data, 0644); err != nil {
		return err
	}

	log.Info().Msgf("Configuration saved to %s", configFilePath)
	return nil
}

// FilePath는 마지막으로 읽거나 저장한 설정 파일 경로
func FilePath() string {
	return configFilePath
}
