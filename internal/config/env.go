package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// LoadEnv loads environment variables into the config struct.
// Fields are matched through their env struct tags; nested structs are
// walked recursively.
func LoadEnv(c *Config) error {
	return processStructEnv(reflect.ValueOf(c).Elem())
}

var durationType = reflect.TypeOf(time.Duration(0))

// processStructEnv processes environment variables for a struct
func processStructEnv(val reflect.Value) error {
	typ := val.Type()

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		if fieldVal.Kind() == reflect.Struct && field.Type != durationType {
			if err := processStructEnv(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}
		envValue, exists := os.LookupEnv(envName)
		if !exists {
			continue
		}

		switch fieldVal.Kind() {
		case reflect.String:
			fieldVal.SetString(envValue)

		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if field.Type == durationType {
				d, err := time.ParseDuration(envValue)
				if err != nil {
					return errors.Wrapf(err, "invalid duration for %s", envName)
				}
				fieldVal.SetInt(int64(d))
				continue
			}
			n, err := strconv.ParseInt(envValue, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid integer for %s", envName)
			}
			fieldVal.SetInt(n)

		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, err := strconv.ParseUint(envValue, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid unsigned integer for %s", envName)
			}
			fieldVal.SetUint(n)

		case reflect.Bool:
			b, err := strconv.ParseBool(envValue)
			if err != nil {
				return errors.Wrapf(err, "invalid boolean for %s", envName)
			}
			fieldVal.SetBool(b)

		case reflect.Float32, reflect.Float64:
			f, err := strconv.ParseFloat(envValue, 64)
			if err != nil {
				return errors.Wrapf(err, "invalid float for %s", envName)
			}
			fieldVal.SetFloat(f)

		case reflect.Slice:
			if fieldVal.Type().Elem().Kind() == reflect.String {
				values := strings.Split(envValue, ",")
				for i, v := range values {
					values[i] = strings.TrimSpace(v)
				}
				fieldVal.Set(reflect.ValueOf(values))
			}
		}
	}
	return nil
}
