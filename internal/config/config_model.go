package config

import "time"

var Conf Config

type Config struct {
	Server     Server     `mapstructure:"server" json:"server" yaml:"server"`
	API        API        `mapstructure:"api" json:"api" yaml:"api"`
	Datasource Datasource `mapstructure:"database" json:"database" yaml:"database"`
	Log        Log        `mapstructure:"log" json:"log" yaml:"log"`
}

type Server struct {
	Port         string        `mapstructure:"port" json:"port" yaml:"port"`
	AppTitle     string        `mapstructure:"app_title" json:"appTitle" yaml:"app_title"`
	CookieSecure bool          `mapstructure:"cookie_secure" json:"cookieSecure" yaml:"cookie_secure"`
	SessionTTL   time.Duration `mapstructure:"session_ttl" json:"sessionTtl" yaml:"session_ttl"`
}

// API는 원격 인증 서버 연결 설정
type API struct {
	BaseURL string        `mapstructure:"base_url" json:"baseUrl" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
}

type Datasource struct {
	URL string `mapstructure:"url" json:"url" yaml:"url"`
}

type Log struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" json:"pretty" yaml:"pretty"`
}
