package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		// DSN del store primario (durabilidad)
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	// Branching: control plane + credenciales de datos de las branches.
	Branching struct {
		Enabled bool `yaml:"enabled"`
		// Control plane (API management, digest auth)
		APIBaseURL string `yaml:"api_base_url"`
		PublicKey  string `yaml:"public_key"`
		PrivateKey string `yaml:"private_key"`
		ClusterID  string `yaml:"cluster_id"`
		Timeout    string `yaml:"timeout"`
		// Data plane (conexiones directas a endpoints de branch)
		DataUser     string `yaml:"data_user"`
		DataPassword string `yaml:"data_password"`
		Database     string `yaml:"database"`
		DataPort     int    `yaml:"data_port"`
		SSLMode      string `yaml:"sslmode"`
		PoolTTL      string `yaml:"pool_ttl"`
		// Cota por operación de branch (write/read best-effort)
		OpTimeout string `yaml:"op_timeout"`
	} `yaml:"branching"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
		Prefix string `yaml:"prefix"`
	} `yaml:"cache"`

	Session struct {
		// Secreto HMAC de los tokens de sesión anónima
		Secret string `yaml:"secret"`
		TTL    string `yaml:"ttl"`
	} `yaml:"session"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
		// backend: memory | redis (redis reusa cache.redis)
		Backend string `yaml:"backend"`
	} `yaml:"rate"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "ramify"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "720h" // 30d
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 60
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Branching.Timeout == "" {
		c.Branching.Timeout = "10s"
	}
	if c.Branching.OpTimeout == "" {
		c.Branching.OpTimeout = "3s"
	}
	if c.Branching.PoolTTL == "" {
		c.Branching.PoolTTL = "5m"
	}
	if c.Branching.DataPort == 0 {
		c.Branching.DataPort = 4000
	}
	if c.Branching.SSLMode == "" {
		c.Branching.SSLMode = "verify-full"
	}

	// validate string durations
	for _, d := range []string{
		c.Storage.Postgres.ConnMaxLifetime,
		c.Session.TTL,
		c.Rate.Window,
		c.Branching.Timeout,
		c.Branching.OpTimeout,
		c.Branching.PoolTTL,
	} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return nil, err
		}
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate chequea lo que no puede faltar para arrancar. Las
// credenciales del control plane son fatales al arranque si el
// branching está habilitado: fallar acá es más barato que fallar en
// el primer request.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.DSN) == "" {
		return errors.New("config: storage.dsn is required")
	}
	if c.Branching.Enabled {
		if strings.TrimSpace(c.Branching.PublicKey) == "" || strings.TrimSpace(c.Branching.PrivateKey) == "" {
			return errors.New("config: branching enabled but public/private key missing")
		}
		if strings.TrimSpace(c.Branching.ClusterID) == "" {
			return errors.New("config: branching enabled but cluster_id missing")
		}
		if strings.TrimSpace(c.Branching.DataUser) == "" || strings.TrimSpace(c.Branching.Database) == "" {
			return errors.New("config: branching enabled but data plane credentials missing")
		}
	}
	if strings.EqualFold(c.App.Env, "prod") {
		if strings.TrimSpace(c.Session.Secret) == "" {
			return errors.New("config: session.secret is required in prod")
		}
		for _, o := range c.Server.CORSAllowedOrigins {
			if strings.TrimSpace(o) == "*" {
				return errors.New("config: cors wildcard origin is not allowed in prod")
			}
		}
	}
	return nil
}

// Dur devuelve la duración parseada de un string ya validado en Load.
func Dur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
// Los secretos normalmente llegan por acá, no por YAML.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvCSV("SERVER_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	if v, ok := getEnvBool("BRANCHING_ENABLED"); ok {
		c.Branching.Enabled = v
	}
	if v, ok := getEnvStr("BRANCHING_API_BASE_URL"); ok {
		c.Branching.APIBaseURL = v
	}
	if v, ok := getEnvStr("BRANCHING_PUBLIC_KEY"); ok {
		c.Branching.PublicKey = v
	}
	if v, ok := getEnvStr("BRANCHING_PRIVATE_KEY"); ok {
		c.Branching.PrivateKey = v
	}
	if v, ok := getEnvStr("BRANCHING_CLUSTER_ID"); ok {
		c.Branching.ClusterID = v
	}
	if v, ok := getEnvStr("BRANCHING_DATA_USER"); ok {
		c.Branching.DataUser = v
	}
	if v, ok := getEnvStr("BRANCHING_DATA_PASSWORD"); ok {
		c.Branching.DataPassword = v
	}
	if v, ok := getEnvStr("BRANCHING_DATABASE"); ok {
		c.Branching.Database = v
	}

	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_HOST"); ok {
		c.Cache.Redis.Host = v
	}
	if v, ok := getEnvInt("REDIS_PORT"); ok {
		c.Cache.Redis.Port = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	if v, ok := getEnvStr("SESSION_SECRET"); ok {
		c.Session.Secret = v
	}
	if v, ok := getEnvStr("SESSION_TTL"); ok {
		c.Session.TTL = v
	}

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}

	if v, ok := getEnvBool("FLAGS_MIGRATE"); ok {
		c.Flags.Migrate = v
	}
}
