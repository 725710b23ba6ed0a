package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"120"` // 同步分配可能需要较长时间
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"1209600"` // 14 天
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Seed struct {
		User struct {
			Password string `env:"PASSWORD,required"`
			Count    int    `env:"COUNT" envDefault:"5"`
		} `envPrefix:"USER_"`
		Operators   int `env:"OPERATORS" envDefault:"10"`
		Orders      int `env:"ORDERS" envDefault:"50"`
		HorizonDays int `env:"HORIZON_DAYS" envDefault:"5"`
	} `envPrefix:"SEED_"`
	Email struct {
		UserDomain string `env:"USER_DOMAIN,required"`
		SMTP       struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN             string `env:"DSN,required"`
		PublishTimeout  int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		EmailQueue      string `env:"EMAIL_QUEUE" envDefault:"email_queue"`
		AllocationQueue string `env:"ALLOCATION_QUEUE" envDefault:"allocation_queue"`
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
		ProgressExpiration  int    `env:"PROGRESS_EXPIRATION" envDefault:"86400"` // 1 天
	} `envPrefix:"REDIS_"`
	Worker struct {
		MetricsPort string `env:"METRICS_PORT" envDefault:"9091"`
	} `envPrefix:"WORKER_"`
	NewUser struct {
		PasswordLength int `env:"PASSWORD_LENGTH" envDefault:"12"`
	} `envPrefix:"NEW_USER_"`
	// 请求中没有给出的遗传算法参数使用这里的默认值
	Allocator struct {
		PopulationSize  int32   `env:"POPULATION_SIZE" envDefault:"50"`
		MaxGenerations  int32   `env:"MAX_GENERATIONS" envDefault:"100"`
		MutationRate    float64 `env:"MUTATION_RATE" envDefault:"0.3"`
		MinMutationRate float64 `env:"MIN_MUTATION_RATE" envDefault:"0.05"`
		MutationDecay   float64 `env:"MUTATION_DECAY" envDefault:"0"`
		EliteCount      int32   `env:"ELITE_COUNT" envDefault:"5"`
		ReinitInterval  int32   `env:"REINIT_INTERVAL" envDefault:"10"`
		HorizonDays     int32   `env:"HORIZON_DAYS" envDefault:"5"`
		Selection       string  `env:"SELECTION" envDefault:"truncation"`
		TournamentSize  int32   `env:"TOURNAMENT_SIZE" envDefault:"5"`
		FitnessVariant  string  `env:"FITNESS_VARIANT" envDefault:"scaled"`
		StagnationLimit int32   `env:"STAGNATION_LIMIT" envDefault:"0"`
		Parallelism     int32   `env:"PARALLELISM" envDefault:"4"`
		Timeout         int     `env:"TIMEOUT" envDefault:"300"`
	} `envPrefix:"ALLOCATOR_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}
