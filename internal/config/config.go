package config

import (
	"path/filepath"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Experiment ExperimentConfig `yaml:"experiment"`
	WSI        WSIConfig        `yaml:"wsi"`
	Log        LogConfig        `yaml:"log"`
}

// PathsConfig holds the directory and file layout of one experiment.
type PathsConfig struct {
	ResultsDir       string `yaml:"results_dir"        env:"RESULTS_DIR"        env-default:"./results"`
	CorpusDir        string `yaml:"corpus_dir"         env:"CORPUS_DIR"`
	ToolsDir         string `yaml:"tools_dir"          env:"TOOLS_DIR"`
	TMDir            string `yaml:"tm_dir"             env:"TM_DIR"`
	LemmasFile       string `yaml:"lemmas_file"        env:"LEMMAS_FILE"`
	WSIArgsFile      string `yaml:"wsi_args_file"      env:"WSI_ARGS_FILE"`
	GoldDistFile     string `yaml:"gold_dist_file"     env:"GOLD_DIST_FILE"`
	BaselineDistFile string `yaml:"baseline_dist_file" env:"BASELINE_DIST_FILE"`
}

// ExperimentConfig holds experiment-level settings.
type ExperimentConfig struct {
	Kind          string `yaml:"kind"           env:"EXPERIMENT_KIND"           env-default:"default"`
	Workers       int    `yaml:"workers"        env:"EXPERIMENT_WORKERS"        env-default:"1"`
	BootstrapSize int    `yaml:"bootstrap_size" env:"EXPERIMENT_BOOTSTRAP_SIZE" env-default:"10"`
	SkipAlignment bool   `yaml:"skip_alignment" env:"EXPERIMENT_SKIP_ALIGNMENT" env-default:"false"`
	KeepWSIData   bool   `yaml:"keep_wsi_data"  env:"EXPERIMENT_KEEP_WSI_DATA"  env-default:"false"`
}

// WSIConfig holds sampler settings.
type WSIConfig struct {
	Backend      string        `yaml:"backend"       env:"WSI_BACKEND"       env-default:"hca"`
	WNVersion    string        `yaml:"wn_version"    env:"WSI_WN_VERSION"    env-default:"wn"`
	ExePath      string        `yaml:"exe_path"      env:"WSI_EXE_PATH"`
	MaxAttempts  int           `yaml:"max_attempts"  env:"WSI_MAX_ATTEMPTS"  env-default:"20"`
	RetryBackoff time.Duration `yaml:"retry_backoff" env:"WSI_RETRY_BACKOFF" env-default:"1s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// ScratchDir returns the per-job sampler scratch directory.
func (c PathsConfig) ScratchDir() string {
	return filepath.Join(c.ResultsDir, "scratch")
}

// TMOutputDir returns the directory of persisted topic-model records.
func (c PathsConfig) TMOutputDir() string {
	return filepath.Join(c.ResultsDir, "tm_output")
}

// SamplerExePath returns the explicit sampler path, or the conventional
// location of the backend's binary under the topic-modelling directory.
func (c *Config) SamplerExePath() string {
	if c.WSI.ExePath != "" {
		return c.WSI.ExePath
	}
	switch c.WSI.Backend {
	case "hca":
		return filepath.Join(c.Paths.TMDir, "HCA-0.61", "hca", "hca")
	case "hdp":
		return filepath.Join(c.Paths.TMDir, "hdp", "hdp")
	}
	return ""
}
