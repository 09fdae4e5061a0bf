package config

import (
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses yaml values like "2s" or "500ms"; yaml.v3 has no native
// time.Duration support.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config top-level struct shared by all four binaries.
type Config struct {
	Command   ServerConfig    `yaml:"command"`
	Query     ServerConfig    `yaml:"query"`
	WriteDB   PostgresConfig  `yaml:"write_db"`
	ReadDB    PostgresConfig  `yaml:"read_db"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Relay     RelayConfig     `yaml:"relay"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	Exchange        string   `yaml:"exchange"`
	RoutingKeys     []string `yaml:"routing_keys"`
	GroupID         string   `yaml:"group_id"`
	DeadLetterTopic string   `yaml:"dead_letter_topic"`
	MaxRetries      int      `yaml:"max_retries"`
	RetryBackoff    Duration `yaml:"retry_backoff"`
}

type RelayConfig struct {
	Interval    Duration `yaml:"interval"`
	BatchSize   int      `yaml:"batch_size"`
	MaxAttempts int      `yaml:"max_attempts"`
}

type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override DSN password from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.WriteDB.DSN = cfg.WriteDB.DSN + " password=" + pw
		cfg.ReadDB.DSN = cfg.ReadDB.DSN + " password=" + pw
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Relay.Interval == 0 {
		c.Relay.Interval = Duration(2 * time.Second)
	}
	if c.Relay.BatchSize == 0 {
		c.Relay.BatchSize = 10
	}
	if c.Relay.MaxAttempts == 0 {
		c.Relay.MaxAttempts = 10
	}
	if c.Kafka.Exchange == "" {
		c.Kafka.Exchange = "ecommerce_events"
	}
	if len(c.Kafka.RoutingKeys) == 0 {
		c.Kafka.RoutingKeys = []string{"order_events", "product_events"}
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "analytics_queue"
	}
	if c.Kafka.DeadLetterTopic == "" {
		c.Kafka.DeadLetterTopic = c.Kafka.Exchange + ".dead_letter"
	}
	if c.Kafka.MaxRetries == 0 {
		c.Kafka.MaxRetries = 3
	}
	if c.Kafka.RetryBackoff == 0 {
		c.Kafka.RetryBackoff = Duration(500 * time.Millisecond)
	}
	if c.Redis.CacheTTL == 0 {
		c.Redis.CacheTTL = Duration(30 * time.Second)
	}
}
