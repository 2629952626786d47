package config

// Config is the full service configuration. The server main populates it
// from pflag flags plus a viper-loaded config file; the inspect CLI loads
// the same structure through gonfig.
type Config struct {
	Host                 string     `json:"host,omitempty" mapstructure:"host"`
	Port                 int        `json:"port,omitempty" mapstructure:"port"`
	Debug                bool       `json:"debug,omitempty" mapstructure:"debug"`
	ConfigFile           string     `json:"config_file,omitempty" mapstructure:"config_file"`
	UseCache             bool       `json:"use_cache,omitempty" mapstructure:"use_cache"`
	CacheLocation        string     `json:"cache_location,omitempty" mapstructure:"cache_location"`
	CachePollingInterval int        `json:"cache_polling_interval,omitempty" mapstructure:"cache_polling_interval"`
	CacheMaxBytes        int64      `json:"cache_max_bytes,omitempty" mapstructure:"cache_max_bytes"`
	LocationDetails      []Location `json:"location_details,omitempty" mapstructure:"location_details"`
}

// Location describes one place recordings can be served from: a local
// directory or a minio/S3 bucket.
type Location struct {
	LocationName   string `json:"location_name" mapstructure:"location_name"`
	LocationType   string `json:"location_type" mapstructure:"location_type"`
	Path           string `json:"path,omitempty" mapstructure:"path"`
	MinioBucket    string `json:"minio_bucket,omitempty" mapstructure:"minio_bucket"`
	Location       string `json:"location,omitempty" mapstructure:"location"`
	MinioAccessKey string `json:"minio_access_key,omitempty" mapstructure:"minio_access_key"`
	MinioSecretKey string `json:"minio_secret_key,omitempty" mapstructure:"minio_secret_key"`
}
