package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads file into config, which must be a pointer to a struct already holding the defaults.
// Every key can be overridden by an environment variable named after its path, with dots
// replaced by underscores (HTTP_PORT, STORE_DRIVER). An empty file means env and defaults only.
func Load(file string, config any) error {
	v := viper.New()

	defaults := make(map[string]any)
	if err := flatten("", config, defaults); err != nil {
		return fmt.Errorf("mapstructure: %v", err)
	}

	// AutomaticEnv only sees keys viper already knows, so every nested key gets a default.
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config from file %s: %v", file, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("unmarshal config: %v", err)
	}

	return nil
}

// flatten decodes in and stores every leaf under its dotted, lower-cased path.
func flatten(prefix string, in any, out map[string]any) error {
	m := make(map[string]any)
	if err := mapstructure.Decode(in, &m); err != nil {
		return err
	}

	for k, val := range m {
		key := strings.ToLower(prefix + k)
		if reflect.ValueOf(val).Kind() == reflect.Struct {
			if err := flatten(key+".", val, out); err != nil {
				return err
			}
			continue
		}

		out[key] = val
	}

	return nil
}
