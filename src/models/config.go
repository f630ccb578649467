package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	Alpaca   MAlpacaConfig  `yaml:"alpaca"`
	Network  MNetworkConfig `yaml:"network"`
	Storage  MStorageConfig `yaml:"storage"`
}

// MAlpacaConfig holds the vendor credentials and endpoints. The key/secret
// are server-side only and are never echoed to any client.
type MAlpacaConfig struct {
	KeyID        string `yaml:"key_id"`
	SecretKey    string `yaml:"secret_key"`
	DataBaseURL  string `yaml:"data_base_url"`
	PaperBaseURL string `yaml:"paper_base_url"`
	StreamURL    string `yaml:"stream_url"`
	Feed         string `yaml:"feed"`
}

type MNetworkConfig struct {
	RequestTimeout int `yaml:"timeout"`      // seconds, applied to every vendor REST call
	AuthTimeout    int `yaml:"auth_timeout"` // seconds, applied to the stream auth handshake
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}
