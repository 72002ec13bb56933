package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel  string                  `yaml:"defaultlevel" json:"default_level" mapstructure:"defaultlevel"` // default level for all modules
	Timezone      string                  `yaml:"timezone" json:"timezone" mapstructure:"timezone"`              // "Local", "UTC" or an IANA name
	Console       *ConsoleOutput          `yaml:"console" json:"console" mapstructure:"console"`
	FileOutput    *FileOutput             `yaml:"fileoutput" json:"file_output" mapstructure:"fileoutput"`
	ModuleOutputs map[string]ModuleOutput `yaml:"modules" json:"modules" mapstructure:"modules"`
	ModuleLevels  map[string]string       `yaml:"modulelevels" json:"module_levels" mapstructure:"modulelevels"`
}

// ConsoleOutput configures console logging. Console output is plain text
// with local timestamps.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" json:"level" mapstructure:"level"`
}

// FileOutput configures the main JSON log file.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" json:"path" mapstructure:"path"`
	Level   string `yaml:"level" json:"level" mapstructure:"level"`
}

// ModuleOutput routes one module to a dedicated file
type ModuleOutput struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	FilePath    string `yaml:"filepath" json:"file_path" mapstructure:"filepath"`
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	ConsoleAlso bool   `yaml:"consolealso" json:"console_also" mapstructure:"consolealso"`
}

// Default values for logging configuration, mirrored in conf/defaults.go.
const (
	DefaultLogLevel       = "info"
	DefaultLogPath        = "logs/whispersubs.log"
	DefaultConsoleEnabled = true
	DefaultFileEnabled    = false
)

// applyConfigDefaults fills nil sections so older config files keep console
// logging enabled.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled: DefaultFileEnabled,
			Path:    DefaultLogPath,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.ModuleOutputs == nil {
		cfg.ModuleOutputs = make(map[string]ModuleOutput)
	}
}
